package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard-backend/internal/handlers"
	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/repository"
	"planboard-backend/internal/router"
	"planboard-backend/internal/services"
	"planboard-backend/internal/websocket"
)

type testServer struct {
	handler http.Handler
	hub     *websocket.Hub
}

func setup(t *testing.T, demoMode bool) testServer {
	t.Helper()
	return setupWithLimit(t, demoMode, 100)
}

func setupWithLimit(t *testing.T, demoMode bool, authLimit int) testServer {
	t.Helper()

	users := repository.NewMemoryUserRepo()
	hub := websocket.NewHub(nil)
	t.Cleanup(hub.Close)

	jwtAuth := middleware.NewJWTAuth("secret")
	authService := services.NewAuthService(users, repository.NewMemorySessionRepo(), jwtAuth, time.Hour, true)
	contentService := services.NewContentService(repository.NewMemoryContentRepo(), users, services.NewLocalNotifier(hub), demoMode)

	cookies := middleware.NewCookieStore("00000000000000000000000000000000", false, time.Hour)
	authenticator := middleware.NewAuthenticator(jwtAuth, cookies, authService)

	limiter := middleware.NewRateLimiter(authLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	h := router.New(
		authenticator,
		handlers.NewAuthHandler(authService, authenticator),
		handlers.NewContentHandler(contentService),
		hub,
		limiter,
		nil,
		demoMode,
	)
	return testServer{handler: h, hub: hub}
}

// login registers a user and returns its bearer header and session cookie.
func login(t *testing.T, s testServer, username, role string) (gofight.H, *http.Cookie) {
	t.Helper()
	r := gofight.New()

	r.POST("/api/register").
		SetJSON(gofight.D{"username": username, "password": "password1", "role": role}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
		})

	var (
		header gofight.H
		cookie *http.Cookie
	)
	r.POST("/api/login").
		SetJSON(gofight.D{"username": username, "password": "password1"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusOK, res.Code, res.Body.String())

			var payload models.LoginResponse
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
			header = gofight.H{"Authorization": "Bearer " + payload.Token}

			rec := (*httptest.ResponseRecorder)(res)
			for _, c := range rec.Result().Cookies() {
				if c.Name == middleware.SessionCookieName {
					cookie = c
				}
			}
		})
	require.NotNil(t, cookie, "login must set the session cookie")
	return header, cookie
}

func TestHealth(t *testing.T) {
	s := setup(t, false)

	gofight.New().GET("/health").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
		assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	})
}

func TestContentsRequireAuthentication(t *testing.T) {
	s := setup(t, false)

	gofight.New().GET("/api/contents").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Contains(t, res.Body.String(), `"requestId"`)
	})
}

func TestCreateScenario(t *testing.T) {
	s := setup(t, true)
	r := gofight.New()

	r.POST("/api/contents").
		SetJSON(gofight.D{"title": "Ep1", "contentType": "Short"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusCreated, res.Code)

			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
			assert.Equal(t, "Idea", payload["stage"])
			assert.Contains(t, payload, "description")
			assert.Nil(t, payload["description"])
		})

	r.POST("/api/contents").
		SetJSON(gofight.D{"title": "ab", "contentType": "Short"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, res.Code)

			var payload models.ErrorResponse
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
			assert.Equal(t, "Validation error", payload.Message)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, "title", payload.Errors[0].Field)
		})

	r.PATCH("/api/contents/999/stage").
		SetJSON(gofight.D{"stage": "Published"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNotFound, res.Code)
		})

	r.GET("/api/contents/abc").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.String(), "Invalid ID format")
	})
}

func TestStageRoundTrip(t *testing.T) {
	s := setup(t, true)
	r := gofight.New()

	r.POST("/api/contents").
		SetJSON(gofight.D{"title": "Ep1", "contentType": "Long", "script": "hello"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, res.Code)
		})

	r.PATCH("/api/contents/1/stage").
		SetJSON(gofight.D{"stage": "Recording"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, res.Code)
		})

	r.GET("/api/contents/1").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusOK, res.Code)

		var c models.ContentItem
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &c))
		assert.Equal(t, models.StageRecording, c.Stage)
		assert.Equal(t, "Ep1", c.Title)
		require.NotNil(t, c.Script)
		assert.Equal(t, "hello", *c.Script)
	})

	r.DELETE("/api/contents/1").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, res.Code)
	})
	r.DELETE("/api/contents/1").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestOwnershipOverHTTP(t *testing.T) {
	s := setup(t, false)
	r := gofight.New()

	alice, _ := login(t, s, "alice", "")
	bob, _ := login(t, s, "bob", "")

	r.POST("/api/contents").
		SetHeader(alice).
		SetJSON(gofight.D{"title": "Secret plan", "contentType": "Short"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, res.Code)
			assert.Contains(t, res.Body.String(), `"creator":"alice"`)
		})

	r.GET("/api/contents").SetHeader(bob).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
		assert.JSONEq(t, `[]`, res.Body.String())
	})

	r.GET("/api/contents/1").SetHeader(bob).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusForbidden, res.Code)
	})
	r.PATCH("/api/contents/1").
		SetHeader(bob).
		SetJSON(gofight.D{"title": "Mine now"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusForbidden, res.Code)
		})
	r.DELETE("/api/contents/1").SetHeader(bob).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	r.GET("/api/contents").SetHeader(alice).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Contains(t, res.Body.String(), "Secret plan")
	})
}

func TestAuthRoutesUseCallerLimiter(t *testing.T) {
	s := setupWithLimit(t, false, 2)
	r := gofight.New()

	codes := []int{}
	for i := 0; i < 3; i++ {
		r.POST("/api/login").
			SetJSON(gofight.D{"username": "ghost", "password": "password1"}).
			Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
				codes = append(codes, res.Code)
			})
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	// Other routes are not limited.
	r.GET("/health").
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, res.Code)
		})
}

func TestViewerCannotCreate(t *testing.T) {
	s := setup(t, false)

	viewer, _ := login(t, s, "vera", models.RoleViewer)

	gofight.New().POST("/api/contents").
		SetHeader(viewer).
		SetJSON(gofight.D{"title": "Not allowed", "contentType": "Short"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusForbidden, res.Code)
		})
}

func TestSessionCookieLoginAndLogout(t *testing.T) {
	s := setup(t, false)
	r := gofight.New()

	_, cookie := login(t, s, "maya", "")
	jar := gofight.H{cookie.Name: cookie.Value}

	r.GET("/api/user").SetCookie(jar).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Contains(t, res.Body.String(), `"username":"maya"`)
		assert.NotContains(t, res.Body.String(), "password")
	})

	r.POST("/api/logout").SetCookie(jar).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
	})

	r.GET("/api/user").SetCookie(jar).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})
}

func TestRevokedTokenIsRejected(t *testing.T) {
	s := setup(t, false)
	r := gofight.New()

	bearer, _ := login(t, s, "maya", "")

	r.POST("/api/logout").SetHeader(bearer).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, res.Code)
	})

	r.GET("/api/contents").SetHeader(bearer).Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Contains(t, res.Body.String(), "SESSION_EXPIRED")
	})
}

func TestBoardAndCalendarRoutes(t *testing.T) {
	s := setup(t, true)
	r := gofight.New()

	r.POST("/api/contents").
		SetJSON(gofight.D{"title": "Scheduled", "contentType": "Short", "stage": "Editing", "plannedDate": "2025-03-01"}).
		Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
			require.Equal(t, http.StatusCreated, res.Code)
		})

	r.GET("/api/contents/board").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusOK, res.Code)
		var board map[string][]models.ContentItem
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &board))
		assert.Len(t, board, 5)
		assert.Len(t, board["Editing"], 1)
	})

	r.GET("/api/contents/calendar?from=2025-03-01&to=2025-03-31").Run(s.handler, func(res gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusOK, res.Code)
		var days []models.CalendarDay
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &days))
		require.Len(t, days, 1)
		assert.Equal(t, "2025-03-01", days[0].Date)
	})
}

func dialWS(t *testing.T, srv *httptest.Server) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTwoClientsConverge(t *testing.T) {
	s := setup(t, true)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	clientA := dialWS(t, srv)
	clientB := dialWS(t, srv)
	_ = clientA

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/contents", "application/json", strings.NewReader(`{"title":"From A","contentType":"Short"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	clientB.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.WSMessage
	require.NoError(t, clientB.ReadJSON(&msg))
	assert.Equal(t, models.EventContentUpdated, msg.Type)

	// Exactly one event per mutation.
	clientB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = clientB.ReadMessage()
	assert.Error(t, err)

	resp, err = http.Get(srv.URL + "/api/contents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var items []models.ContentItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "From A", items[0].Title)
}

func TestFailedMutationDoesNotNotify(t *testing.T) {
	s := setup(t, true)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/contents", "application/json", strings.NewReader(`{"title":"ab","contentType":"Short"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
