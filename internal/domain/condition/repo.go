package condition

import "context"

// Repository persists condition records. Create assigns an id when the
// record has none and returns ErrConflict for an id already in use.
// Lookups return ErrNotFound for unknown ids. Search returns the page
// and the total match count, newest first.
type Repository interface {
	Create(ctx context.Context, c *Condition) error
	GetByID(ctx context.Context, id string) (*Condition, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Condition, int, error)
}
