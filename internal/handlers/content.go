package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-chi/chi/v5"

	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/services"
)

type ContentHandler struct {
	contentService *services.ContentService
}

func NewContentHandler(contentService *services.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := models.ListOptions{
		Stage:       models.Stage(q.Get("stage")),
		ContentType: models.ContentType(q.Get("type")),
		Sort:        q.Get("sort"),
	}

	items, err := h.contentService.List(r.Context(), middleware.GetAuth(r.Context()), opts)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to fetch contents")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *ContentHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.contentService.Board(r.Context(), middleware.GetAuth(r.Context()), r.URL.Query().Get("sort"))
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to fetch contents")
		return
	}

	writeJSON(w, http.StatusOK, board)
}

func (h *ContentHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	fields := make([]models.FieldError, 0, 2)
	from, ok := parseDateParam(r, "from")
	if !ok {
		fields = append(fields, models.FieldError{Field: "from", Message: "Must be an ISO date"})
	}
	to, ok := parseDateParam(r, "to")
	if !ok {
		fields = append(fields, models.FieldError{Field: "to", Message: "Must be an ISO date"})
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation error", fields, r))
		return
	}

	days, err := h.contentService.Calendar(r.Context(), middleware.GetAuth(r.Context()), from, to)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to fetch contents")
		return
	}

	writeJSON(w, http.StatusOK, days)
}

func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	c, err := h.contentService.Get(r.Context(), middleware.GetAuth(r.Context()), id)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to fetch content")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.contentService.Create(r.Context(), middleware.GetAuth(r.Context()), req)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to create content")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req models.UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.contentService.Update(r.Context(), middleware.GetAuth(r.Context()), id, req)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to update content")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *ContentHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req models.UpdateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.contentService.UpdateStage(r.Context(), middleware.GetAuth(r.Context()), id, req.Stage)
	if err != nil {
		handleServiceErrorWith(w, r, err, "Failed to update content stage")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.contentService.Delete(r.Context(), middleware.GetAuth(r.Context()), id); err != nil {
		handleServiceErrorWith(w, r, err, "Failed to delete content")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ID", "Invalid ID format", r))
		return 0, false
	}
	return id, true
}

// parseDateParam returns nil for a missing parameter and false when the
// value cannot be parsed.
func parseDateParam(r *http.Request, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return nil, false
	}
	return &t, true
}
