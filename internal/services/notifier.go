package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"planboard-backend/internal/models"
)

// ChangeNotifier tells connected clients that the content collection
// changed. The event carries no payload; receivers refetch.
type ChangeNotifier interface {
	NotifyContentChanged(ctx context.Context) error
}

func contentUpdatedEvent() []byte {
	data, _ := json.Marshal(models.WSMessage{Type: models.EventContentUpdated})
	return data
}

// RedisNotifier publishes on the shared channel; each instance's hub
// subscribes and fans out to its own sockets.
type RedisNotifier struct {
	redis *redis.Client
}

func NewRedisNotifier(redisClient *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: redisClient}
}

func (n *RedisNotifier) NotifyContentChanged(ctx context.Context) error {
	if err := n.redis.Publish(ctx, models.ContentUpdatesChannel, contentUpdatedEvent()).Err(); err != nil {
		return fmt.Errorf("failed to publish content update: %w", err)
	}
	return nil
}

type Broadcaster interface {
	Broadcast(data []byte)
}

// LocalNotifier broadcasts in process. Used when Redis is not configured.
type LocalNotifier struct {
	hub Broadcaster
}

func NewLocalNotifier(hub Broadcaster) *LocalNotifier {
	return &LocalNotifier{hub: hub}
}

func (n *LocalNotifier) NotifyContentChanged(ctx context.Context) error {
	n.hub.Broadcast(contentUpdatedEvent())
	return nil
}

type NopNotifier struct{}

func (NopNotifier) NotifyContentChanged(context.Context) error { return nil }
