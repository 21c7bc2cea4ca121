package plannerclient

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"planboard-backend/internal/models"
)

// AllContentsKey identifies the single cached collection.
const AllContentsKey = "/api/contents"

const fetchTimeout = 30 * time.Second

type snapshot struct {
	items      []*models.ContentItem
	generation uint64
}

// A Cache holds the last fetched content list. Every invalidation bumps a
// generation counter; a refresh only returns once it holds data fetched at
// or after the generation observed when it was called.
type Cache struct {
	client *Client
	group  singleflight.Group

	mu         sync.RWMutex
	items      []*models.ContentItem
	generation uint64
	fetched    uint64
	fresh      bool
	listeners  []func([]*models.ContentItem)
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client, generation: 1}
}

// Client returns the underlying API client.
func (c *Cache) Client() *Client {
	return c.client
}

// OnChange registers fn to receive every refreshed snapshot.
func (c *Cache) OnChange(fn func([]*models.ContentItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Contents returns the cached list, refetching first when it is stale.
func (c *Cache) Contents(ctx context.Context) ([]*models.ContentItem, error) {
	c.mu.RLock()
	if c.fresh {
		items := cloneItems(c.items)
		c.mu.RUnlock()
		return items, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Cached returns the last fetched list and whether it is still fresh.
func (c *Cache) Cached() ([]*models.ContentItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneItems(c.items), c.fresh
}

// Invalidate marks the cached list stale. The data is kept until the next
// successful refresh replaces it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.fresh = false
}

// Refresh refetches the list. Concurrent callers share one round trip.
func (c *Cache) Refresh(ctx context.Context) ([]*models.ContentItem, error) {
	c.mu.RLock()
	target := c.generation
	c.mu.RUnlock()

	for {
		ch := c.group.DoChan(AllContentsKey, c.fetch)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			snap := res.Val.(snapshot)
			if snap.generation >= target {
				return cloneItems(snap.items), nil
			}
			// Joined a fetch that started before our invalidation.
		}
	}
}

func (c *Cache) fetch() (any, error) {
	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	// Detached from any single caller so one cancellation does not fail
	// every waiter.
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	items, err := c.client.List(ctx, models.ListOptions{})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if generation >= c.fetched {
		c.items = items
		c.fetched = generation
		c.fresh = generation == c.generation
	}
	listeners := append([]func([]*models.ContentItem){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneItems(items))
	}
	return snapshot{items: items, generation: generation}, nil
}

func (c *Cache) Create(ctx context.Context, req models.CreateContentRequest) (*models.ContentItem, error) {
	item, err := c.client.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	c.revalidate(ctx, "create")
	return item, nil
}

func (c *Cache) Update(ctx context.Context, id int64, req models.UpdateContentRequest) (*models.ContentItem, error) {
	item, err := c.client.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.revalidate(ctx, "update")
	return item, nil
}

func (c *Cache) UpdateStage(ctx context.Context, id int64, stage models.Stage) (*models.ContentItem, error) {
	item, err := c.client.UpdateStage(ctx, id, stage)
	if err != nil {
		return nil, err
	}
	c.revalidate(ctx, "stage update")
	return item, nil
}

func (c *Cache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Delete(ctx, id); err != nil {
		return err
	}
	c.revalidate(ctx, "delete")
	return nil
}

// revalidate runs after a server-side success. A failed refetch leaves the
// cache stale; the mutation itself still succeeded.
func (c *Cache) revalidate(ctx context.Context, op string) {
	c.Invalidate()
	if _, err := c.Refresh(ctx); err != nil {
		log.Printf("plannerclient: refresh after %s failed: %v", op, err)
	}
}

func cloneItems(items []*models.ContentItem) []*models.ContentItem {
	if items == nil {
		return nil
	}
	out := make([]*models.ContentItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
