package plannerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard-backend/internal/handlers"
	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/repository"
	"planboard-backend/internal/router"
	"planboard-backend/internal/services"
	planws "planboard-backend/internal/websocket"
)

func newPlanboardServer(t *testing.T) *httptest.Server {
	t.Helper()

	users := repository.NewMemoryUserRepo()
	hub := planws.NewHub(nil)

	jwtAuth := middleware.NewJWTAuth("secret")
	authService := services.NewAuthService(users, repository.NewMemorySessionRepo(), jwtAuth, time.Hour, true)
	contentService := services.NewContentService(repository.NewMemoryContentRepo(), users, services.NewLocalNotifier(hub), true)
	authenticator := middleware.NewAuthenticator(jwtAuth, middleware.NewCookieStore("00000000000000000000000000000000", false, time.Hour), authService)

	limiter := middleware.NewRateLimiter(100, time.Minute)

	srv := httptest.NewServer(router.New(
		authenticator,
		handlers.NewAuthHandler(authService, authenticator),
		handlers.NewContentHandler(contentService),
		hub,
		limiter,
		nil,
		true,
	))
	t.Cleanup(func() {
		hub.Close()
		limiter.Stop()
		srv.Close()
	})
	return srv
}

func runSubscriber(t *testing.T, srv *httptest.Server) (*Cache, chan []*models.ContentItem) {
	t.Helper()

	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	cache := NewCache(client)

	connected := make(chan struct{}, 1)
	refreshed := make(chan []*models.ContentItem, 16)

	sub := NewSubscriber(cache)
	sub.Debounce = 10 * time.Millisecond
	sub.OnConnect = func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	}
	sub.OnRefresh = func(items []*models.ContentItem, err error) {
		if err != nil {
			return
		}
		select {
		case refreshed <- items:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never connected")
	}
	return cache, refreshed
}

func waitFor(t *testing.T, ch chan []*models.ContentItem, match func([]*models.ContentItem) bool) []*models.ContentItem {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case items := <-ch:
			if match(items) {
				return items
			}
		case <-deadline:
			t.Fatal("timed out waiting for refresh")
			return nil
		}
	}
}

func TestSubscriber_ClientsConverge(t *testing.T) {
	srv := newPlanboardServer(t)
	cacheA, _ := runSubscriber(t, srv)
	_, refreshedB := runSubscriber(t, srv)

	item, err := cacheA.Create(context.Background(), models.CreateContentRequest{Title: "Ep1", ContentType: "Short"})
	require.NoError(t, err)

	// The writer sees its own write without waiting for the push.
	own, fresh := cacheA.Cached()
	assert.True(t, fresh)
	require.Len(t, own, 1)
	assert.Equal(t, item.ID, own[0].ID)

	items := waitFor(t, refreshedB, func(items []*models.ContentItem) bool { return len(items) == 1 })
	assert.Equal(t, "Ep1", items[0].Title)

	_, err = cacheA.UpdateStage(context.Background(), item.ID, models.StageRecording)
	require.NoError(t, err)
	waitFor(t, refreshedB, func(items []*models.ContentItem) bool {
		return len(items) == 1 && items[0].Stage == models.StageRecording
	})

	require.NoError(t, cacheA.Delete(context.Background(), item.ID))
	waitFor(t, refreshedB, func(items []*models.ContentItem) bool { return len(items) == 0 })
}

func TestSubscriber_ReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/contents", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if connections.Add(1) == 1 {
			conn.Close()
			return
		}
		go func() {
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	sub := NewSubscriber(NewCache(client))
	sub.ReconnectDelay = 20 * time.Millisecond
	connects := make(chan struct{}, 4)
	sub.OnConnect = func() { connects <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sub.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d never happened", i+1)
		}
	}
	assert.Equal(t, int32(2), connections.Load())

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestClient_DecodesAPIErrors(t *testing.T) {
	srv := newPlanboardServer(t)
	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apierr *APIError
	require.ErrorAs(t, err, &apierr)
	assert.Equal(t, "Content not found", apierr.Message)
	assert.NotEmpty(t, apierr.RequestID)

	_, err = client.Me(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestClient_LoginKeepsBearer(t *testing.T) {
	srv := newPlanboardServer(t)
	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = client.Register(context.Background(), models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)

	login, err := client.Login(context.Background(), "maya", "password1")
	require.NoError(t, err)
	assert.Equal(t, login.Token, client.BearerToken())

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "maya", me.Username)

	created, err := client.Create(context.Background(), models.CreateContentRequest{Title: "Owned", ContentType: "Long"})
	require.NoError(t, err)
	require.NotNil(t, created.UserID)
	assert.Equal(t, me.ID, *created.UserID)

	board, err := client.Board(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, board[models.StageIdea], 1)

	require.NoError(t, client.Logout(context.Background()))
	assert.Empty(t, client.BearerToken())
}

func TestClient_WebSocketURL(t *testing.T) {
	c, err := NewDefaultClient("https://plan.example.com/base")
	require.NoError(t, err)
	assert.Equal(t, "wss://plan.example.com/base/ws", c.WebSocketURL())

	_, err = NewDefaultClient("ftp://plan.example.com")
	assert.Error(t, err)
}
