package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type SessionStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	Get(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID int64, keep string) error
}

type AuthService struct {
	users             UserStore
	sessions          SessionStore
	jwt               *middleware.JWTAuth
	tokenTTL          time.Duration
	allowRegistration bool
	bcryptCost        int
}

func NewAuthService(users UserStore, sessions SessionStore, jwt *middleware.JWTAuth, tokenTTL time.Duration, allowRegistration bool) *AuthService {
	return &AuthService{
		users:             users,
		sessions:          sessions,
		jwt:               jwt,
		tokenTTL:          tokenTTL,
		allowRegistration: allowRegistration,
		bcryptCost:        12,
	}
}

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

	errBadCredentials = &UnauthorizedError{Message: "Invalid username or password"}
)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if !s.allowRegistration {
		return nil, &ForbiddenError{Message: "Registration is disabled"}
	}

	fieldErrors := make(map[string]string)

	username := strings.TrimSpace(req.Username)
	if !usernameRegex.MatchString(username) {
		fieldErrors["username"] = "Username must be 3-32 letters, digits, dots, dashes or underscores"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}

	var email *string
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		e := strings.TrimSpace(*req.Email)
		if !emailRegex.MatchString(e) {
			fieldErrors["email"] = "Invalid email format"
		}
		email = &e
	}

	role := req.Role
	switch role {
	case "":
		role = models.RoleEditor
	case models.RoleEditor, models.RoleViewer:
	default:
		fieldErrors["role"] = "Role must be editor or viewer"
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &ConflictError{Message: "Username already taken"}
		}
		return nil, err
	}
	return user, nil
}

// Login checks the password, opens a server session and signs a token bound
// to it.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	fieldErrors := make(map[string]string)
	if strings.TrimSpace(req.Username) == "" {
		fieldErrors["username"] = "Username is required"
	}
	if req.Password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}

	sessionID, err := s.sessions.Create(ctx, user.ID, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.jwt.GenerateAccessToken(user.ID, user.Role, sessionID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &models.LoginResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
	}, nil
}

// Logout ends the caller's session. Anonymous callers are a no-op.
func (s *AuthService) Logout(ctx context.Context, auth models.AuthContext) error {
	if auth.SessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, auth.SessionID)
}

func (s *AuthService) Me(ctx context.Context, auth models.AuthContext) (*models.User, error) {
	if !auth.Authenticated() {
		return nil, errAuthRequired
	}
	user, err := s.users.GetByID(ctx, *auth.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errAuthRequired
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password and revokes every other session of
// the user.
func (s *AuthService) ChangePassword(ctx context.Context, auth models.AuthContext, req models.ChangePasswordRequest) error {
	user, err := s.Me(ctx, auth)
	if err != nil {
		return err
	}

	fieldErrors := make(map[string]string)
	if req.CurrentPassword == "" {
		fieldErrors["currentPassword"] = "Current password is required"
	} else if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		fieldErrors["currentPassword"] = "Current password is incorrect"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	return s.sessions.DeleteAllForUser(ctx, user.ID, auth.SessionID)
}

// ResolveSession maps a session id to the caller identity.
func (s *AuthService) ResolveSession(ctx context.Context, sessionID string) (models.AuthContext, error) {
	userID, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.AuthContext{}, middleware.ErrInvalidSession
		}
		return models.AuthContext{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.AuthContext{}, middleware.ErrInvalidSession
		}
		return models.AuthContext{}, err
	}

	id := user.ID
	return models.AuthContext{
		UserID:    &id,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: sessionID,
	}, nil
}

// SeedAdmin creates the configured admin account on first start. An
// existing account with that name is left untouched.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			log.Printf("auth: seed user %q exists with role %s, not promoting", username, existing.Role)
		}
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := validatePassword(password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{Username: username, PasswordHash: string(hash), Role: models.RoleAdmin}
	if err := s.users.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrConflict) {
		return err
	}
	return nil
}

const maxPasswordBytes = 72

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	// bcrypt refuses longer input.
	if len(pw) > maxPasswordBytes {
		return fmt.Errorf("Password must be at most %d bytes", maxPasswordBytes)
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
