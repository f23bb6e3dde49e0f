package condition

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps conditions in process memory. Records are copied on
// the way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]*Condition
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data: make(map[string]*Condition),
		now:  time.Now,
	}
}

// Seed loads records as-is, replacing any with the same id. Timestamps left
// zero are filled in.
func (r *MemoryRepository) Seed(records ...*Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range records {
		cp := c.clone()
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = r.now().UTC()
		}
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = cp.CreatedAt
		}
		r.data[cp.ID] = cp
	}
}

func (r *MemoryRepository) Create(ctx context.Context, c *Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	} else if _, exists := r.data[c.ID]; exists {
		return ErrConflict
	}
	now := r.now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.data[c.ID] = c.clone()
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Condition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

func (r *MemoryRepository) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Condition, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	var matches []*Condition
	for _, c := range r.data {
		if params.Matches(c) {
			matches = append(matches, c.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	total := len(matches)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*Condition{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matches[offset:end], total, nil
}
