package storage

import "context"

// NopStore discards attempts. It backs HISTORY_STORAGE=none.
type NopStore struct{}

func (NopStore) CreateAttempt(context.Context, *Attempt) error { return nil }
func (NopStore) UpdateAttempt(context.Context, *Attempt) error { return nil }

func (NopStore) GetAttempt(context.Context, string) (*Attempt, error) {
	return nil, ErrNotFound
}

func (NopStore) ListAttempts(context.Context, AttemptFilter, PaginationParams) (*PaginatedResult[Attempt], error) {
	return &PaginatedResult[Attempt]{Data: []Attempt{}}, nil
}

func (NopStore) Close() error                  { return nil }
func (NopStore) Migrate(context.Context) error { return nil }
