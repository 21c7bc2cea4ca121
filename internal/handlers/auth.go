package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/services"
)

// SessionCookies writes and clears the login cookie.
type SessionCookies interface {
	SaveSession(w http.ResponseWriter, r *http.Request, sessionID string) error
	ClearSession(w http.ResponseWriter, r *http.Request) error
}

type AuthHandler struct {
	authService *services.AuthService
	cookies     SessionCookies
}

func NewAuthHandler(authService *services.AuthService, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login returns the token in the body and also sets the session cookie, so
// both browser and API clients work.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.cookies.SaveSession(w, r, resp.SessionID); err != nil {
		log.Printf("auth: failed to write session cookie: %v", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.GetAuth(r.Context())); err != nil {
		log.Printf("auth: failed to delete session: %v", err)
	}
	if err := h.cookies.ClearSession(w, r); err != nil {
		log.Printf("auth: failed to clear session cookie: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.GetAuth(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), middleware.GetAuth(r.Context()), req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Message:   message,
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
	}
}

func errorRespWithFields(code, message string, fields []models.FieldError, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Errors = fields
	return resp
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceErrorWith(w, r, err, "An unexpected error occurred")
}

// handleServiceErrorWith maps typed service errors to statuses. Anything
// else is a 500 with internalMsg; the cause is only logged.
func handleServiceErrorWith(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation error", e.FieldErrors(), r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", e.Message, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r))
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", e.Message, r))
	default:
		log.Printf("%s %s [%s]: %v", r.Method, r.URL.Path, chimw.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", internalMsg, r))
	}
}
