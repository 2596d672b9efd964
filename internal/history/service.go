package history

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"foodsafe-backend/internal/jobs"
)

// Service records completed scans and lists them back.
type Service struct {
	Repo Repo
}

// Record stores a completed job. It is used as the queue's completion hook.
func (s *Service) Record(ctx context.Context, job jobs.Job) error {
	if job.Status != jobs.StatusCompleted || job.Result == nil {
		return errors.New("only completed jobs are recorded")
	}
	createdAt := job.CreatedAt
	if job.CompletedAt != nil {
		createdAt = *job.CompletedAt
	}
	return s.Repo.Create(ctx, Entry{
		ID:          uuid.NewString(),
		UserID:      job.OwnerID,
		JobID:       job.ID,
		Kind:        job.Kind,
		ProductName: job.Request.ProductName,
		Barcode:     job.Request.Barcode,
		Result:      job.Result.Clone(),
		CreatedAt:   createdAt,
	})
}

// List returns a user's history newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}
