package history

import (
	"time"

	"foodsafe-backend/internal/analysis"
)

// Entry is one completed scan kept in the user's history.
type Entry struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"userId"`
	JobID       string                  `json:"jobId"`
	Kind        analysis.Kind           `json:"kind"`
	ProductName string                  `json:"productName,omitempty"`
	Barcode     string                  `json:"barcode,omitempty"`
	Result      analysis.AnalysisResult `json:"result"`
	CreatedAt   time.Time               `json:"createdAt"`
}
