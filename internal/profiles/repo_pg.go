package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, profile Profile) error {
	const query = `
INSERT INTO user_profiles (user_id, allergies, medications, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET
  allergies = EXCLUDED.allergies,
  medications = EXCLUDED.medications,
  updated_at = now()`
	allergies, err := encodeList(profile.Allergies)
	if err != nil {
		return err
	}
	medications, err := encodeList(profile.Medications)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, profile.UserID, allergies, medications)
	return err
}

func (r *PGRepo) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	const query = `
SELECT user_id, allergies, medications, updated_at
FROM user_profiles
WHERE user_id = $1
LIMIT 1`
	var profile Profile
	var allergies, medications []byte
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&allergies,
		&medications,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if profile.Allergies, err = decodeList(allergies); err != nil {
		return Profile{}, fmt.Errorf("decode allergies: %w", err)
	}
	if profile.Medications, err = decodeList(medications); err != nil {
		return Profile{}, fmt.Errorf("decode medications: %w", err)
	}
	return profile, nil
}

func encodeList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
