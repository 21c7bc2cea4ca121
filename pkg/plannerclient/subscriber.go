package plannerclient

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"planboard-backend/internal/models"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultDebounce       = 100 * time.Millisecond
)

// A Subscriber keeps a Cache in sync with server push notifications.
type Subscriber struct {
	cache  *Cache
	url    string
	dialer *websocket.Dialer

	ReconnectDelay time.Duration
	Debounce       time.Duration

	// OnConnect is called after every successful dial.
	OnConnect func()
	// OnRefresh is called with the result of every scheduled refresh.
	OnRefresh func([]*models.ContentItem, error)
}

func NewSubscriber(cache *Cache) *Subscriber {
	return &Subscriber{
		cache:          cache,
		url:            cache.Client().WebSocketURL(),
		dialer:         websocket.DefaultDialer,
		ReconnectDelay: DefaultReconnectDelay,
		Debounce:       DefaultDebounce,
	}
}

// Run listens until ctx is cancelled, reconnecting after ReconnectDelay
// whenever the connection drops or cannot be established.
func (s *Subscriber) Run(ctx context.Context) error {
	refresh := s.scheduler(ctx)

	for {
		err := s.listen(ctx, refresh)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("plannerclient: websocket closed: %v (retrying in %s)", err, s.ReconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
	}
}

func (s *Subscriber) scheduler(ctx context.Context) func() {
	debounced := debounce.New(s.Debounce)

	return func() {
		debounced(func() {
			if ctx.Err() != nil {
				return
			}
			items, err := s.cache.Refresh(ctx)
			if err != nil {
				log.Printf("plannerclient: refresh failed: %v", err)
			}
			if s.OnRefresh != nil {
				s.OnRefresh(items, err)
			}
		})
	}
}

func (s *Subscriber) listen(ctx context.Context, refresh func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "could not dial")
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if s.OnConnect != nil {
		s.OnConnect()
	}
	// Anything may have changed while disconnected.
	s.cache.Invalidate()
	refresh()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "could not read message")
		}

		var msg models.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("plannerclient: ignoring malformed message: %v", err)
			continue
		}
		if msg.Type != models.EventContentUpdated {
			continue
		}

		s.cache.Invalidate()
		refresh()
	}
}
