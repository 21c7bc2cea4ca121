package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"planboard-backend/internal/models"
)

type contextKey string

const AuthContextKey contextKey = "auth"

const (
	SessionCookieName = "planboard_session"
	sessionIDValue    = "sid"
)

// ErrInvalidSession is returned by a SessionResolver when the session is
// unknown, expired or revoked.
var ErrInvalidSession = errors.New("invalid session")

type Claims struct {
	UserID    int64  `json:"uid"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// GenerateAccessToken signs a token bound to a server session, so revoking
// the session revokes the token.
func (j *JWTAuth) GenerateAccessToken(userID int64, role, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTAuth) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (models.AuthContext, error)
}

// Authenticator resolves the caller identity once per request, from a
// Bearer token or the session cookie. Requests without credentials pass
// through as anonymous.
type Authenticator struct {
	jwt      *JWTAuth
	cookies  sessions.Store
	resolver SessionResolver
}

func NewAuthenticator(jwtAuth *JWTAuth, cookies sessions.Store, resolver SessionResolver) *Authenticator {
	return &Authenticator{jwt: jwtAuth, cookies: cookies, resolver: resolver}
}

func NewCookieStore(secret string, secure bool, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
				return
			}

			claims, err := a.jwt.ParseToken(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
				} else {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
				}
				return
			}

			auth, err := a.resolver.ResolveSession(r.Context(), claims.SessionID)
			if err != nil || auth.UserID == nil || *auth.UserID != claims.UserID {
				if err != nil && !errors.Is(err, ErrInvalidSession) {
					log.Printf("auth: session lookup failed: %v", err)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", r)
					return
				}
				writeError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Session expired or revoked", r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), auth)))
			return
		}

		sid := a.cookieSessionID(r)
		if sid == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth, err := a.resolver.ResolveSession(r.Context(), sid)
		if err != nil {
			if !errors.Is(err, ErrInvalidSession) {
				log.Printf("auth: session lookup failed: %v", err)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", r)
				return
			}
			// A stale cookie is treated as no cookie.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), auth)))
	})
}

func (a *Authenticator) cookieSessionID(r *http.Request) string {
	if _, err := r.Cookie(SessionCookieName); err != nil {
		return ""
	}
	session, err := a.cookies.Get(r, SessionCookieName)
	if err != nil {
		return ""
	}
	sid, _ := session.Values[sessionIDValue].(string)
	return sid
}

// SaveSession writes the signed session cookie for a fresh login.
func (a *Authenticator) SaveSession(w http.ResponseWriter, r *http.Request, sessionID string) error {
	session, _ := a.cookies.Get(r, SessionCookieName)
	session.Values[sessionIDValue] = sessionID
	return session.Save(r, w)
}

func (a *Authenticator) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.cookies.Get(r, SessionCookieName)
	delete(session.Values, sessionIDValue)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuth(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthUnless passes anonymous callers through when open is set.
func RequireAuthUnless(open bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if open {
			return next
		}
		return RequireAuth(next)
	}
}

func WithAuth(ctx context.Context, auth models.AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}

// GetAuth returns the caller identity, anonymous when none was resolved.
func GetAuth(ctx context.Context) models.AuthContext {
	auth, _ := ctx.Value(AuthContextKey).(models.AuthContext)
	return auth
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Message:   message,
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
	})
}
