package services

import (
	"sort"

	"planboard-backend/internal/models"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// FieldErrors returns one entry per invalid field, sorted by field name.
func (e *ValidationError) FieldErrors() []models.FieldError {
	out := make([]models.FieldError, 0, len(e.Fields))
	for field, msg := range e.Fields {
		out = append(out, models.FieldError{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

var (
	errContentNotFound = &NotFoundError{Message: "Content not found"}
	errAccessDenied    = &ForbiddenError{Message: "Access denied"}
	errReadOnly        = &ForbiddenError{Message: "Your role does not allow changes"}
	errAuthRequired    = &UnauthorizedError{Message: "Authentication required"}
)
