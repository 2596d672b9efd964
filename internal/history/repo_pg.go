package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"foodsafe-backend/internal/analysis"
)

// PGRepo stores history in the scan_history table.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the entry.
func (r *PGRepo) Create(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO scan_history (id, user_id, job_id, kind, product_name, barcode, risk_level, safe, analysis_method, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.JobID,
		string(entry.Kind),
		nullableString(entry.ProductName),
		nullableString(entry.Barcode),
		string(entry.Result.RiskLevel),
		entry.Result.Safe,
		string(entry.Result.AnalysisMethod),
		result,
		entry.CreatedAt,
	)
	return err
}

// ListByUser returns entries newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, job_id, kind, product_name, barcode, result, created_at
FROM scan_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			entry       Entry
			kind        string
			productName sql.NullString
			barcode     sql.NullString
			raw         []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.JobID, &kind, &productName, &barcode, &raw, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Kind = analysis.Kind(kind)
		if productName.Valid {
			entry.ProductName = productName.String
		}
		if barcode.Valid {
			entry.Barcode = barcode.String
		}
		if err := json.Unmarshal(raw, &entry.Result); err != nil {
			return nil, fmt.Errorf("decode result for %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
