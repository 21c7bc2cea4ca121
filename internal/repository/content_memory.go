package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"planboard-backend/internal/models"
)

// MemoryContentRepo keeps contents in process. It is used when no database
// is configured and as a fixture in tests. The mutex is held across the
// check and the write of Update and Delete.
type MemoryContentRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.ContentItem
	now    func() time.Time
}

func NewMemoryContentRepo() *MemoryContentRepo {
	return &MemoryContentRepo{
		nextID: 1,
		items:  make(map[int64]*models.ContentItem),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryContentRepo) List(ctx context.Context, f ContentFilter) ([]*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*models.ContentItem, 0, len(r.items))
	for _, c := range r.items {
		if f.OwnerID != nil && !c.OwnedBy(*f.OwnerID) {
			continue
		}
		if f.Stage != "" && c.Stage != f.Stage {
			continue
		}
		if f.ContentType != "" && c.ContentType != f.ContentType {
			continue
		}
		items = append(items, c.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *MemoryContentRepo) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryContentRepo) Create(ctx context.Context, c *models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	r.items[c.ID] = c.Clone()
	return nil
}

func (r *MemoryContentRepo) Update(ctx context.Context, id int64, fn func(c *models.ContentItem) error) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}

	c := existing.Clone()
	if err := fn(c); err != nil {
		return nil, err
	}

	// Identity and creation fields are owned by the store.
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	c.UserID = existing.UserID
	c.UpdatedAt = r.now()

	r.items[id] = c.Clone()
	return c, nil
}

func (r *MemoryContentRepo) Delete(ctx context.Context, id int64, check func(c *models.ContentItem) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if check != nil {
		if err := check(c.Clone()); err != nil {
			return err
		}
	}
	delete(r.items, id)
	return nil
}
