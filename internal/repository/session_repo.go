package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRepo stores login sessions in Redis as "session:<id>" -> user id,
// indexed per user so a password change can revoke them all.
type SessionRepo struct {
	redis *redis.Client
}

func NewSessionRepo(redisClient *redis.Client) *SessionRepo {
	return &SessionRepo{redis: redisClient}
}

func sessionKey(id string) string { return "session:" + id }

func userSessionsKey(userID int64) string { return fmt.Sprintf("user_sessions:%d", userID) }

func (r *SessionRepo) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	id := uuid.New().String()

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, sessionKey(id), strconv.FormatInt(userID, 10), ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), id)
	pipe.Expire(ctx, userSessionsKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (int64, error) {
	val, err := r.redis.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return userID, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	userID, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userSessionsKey(userID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteAllForUser revokes every session of a user except keep.
func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID int64, keep string) error {
	ids, err := r.redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == keep {
			continue
		}
		pipe := r.redis.TxPipeline()
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, userSessionsKey(userID), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
