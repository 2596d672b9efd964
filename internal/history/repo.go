package history

import "context"

// Repo persists history entries.
type Repo interface {
	Create(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
}
