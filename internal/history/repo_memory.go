package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores history in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string][]Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string][]Entry)}
}

// Create stores the entry.
func (r *MemoryRepo) Create(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry.Result = entry.Result.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[entry.UserID] = append(r.byUser[entry.UserID], entry)
	return nil
}

// ListByUser returns entries for a user, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	entries := make([]Entry, len(r.byUser[userID]))
	copy(entries, r.byUser[userID])
	r.mu.RUnlock()

	if len(entries) == 0 || offset >= len(entries) {
		return []Entry{}, nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := entries[offset:end]
	for i := range out {
		out[i].Result = out[i].Result.Clone()
	}
	return out, nil
}
