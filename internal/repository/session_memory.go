package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySession struct {
	userID    int64
	expiresAt time.Time
}

type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string]memorySession)}
}

func (r *MemorySessionRepo) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.sessions[id] = memorySession{userID: userID, expiresAt: time.Now().Add(ttl)}
	return id, nil
}

func (r *MemorySessionRepo) Get(ctx context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	if time.Now().After(s.expiresAt) {
		delete(r.sessions, id)
		return 0, ErrNotFound
	}
	return s.userID, nil
}

func (r *MemorySessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepo) DeleteAllForUser(ctx context.Context, userID int64, keep string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.userID == userID && id != keep {
			delete(r.sessions, id)
		}
	}
	return nil
}
