package plannerclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"planboard-backend/internal/models"
)

// An APIError represents an HTTP error returned by the planboard server.
type APIError struct {
	StatusCode int                 `json:"-"`
	Message    string              `json:"message"`
	Code       string              `json:"code"`
	Errors     []models.FieldError `json:"errors"`
	RequestID  string              `json:"requestId"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	}
	msg := fmt.Sprintf("%d %s:", e.StatusCode, e.Message)
	for _, f := range e.Errors {
		msg += fmt.Sprintf(" %s: %s;", f.Field, f.Message)
	}
	return msg[:len(msg)-1]
}

func parseAPIError(r io.Reader, code int) error {
	apierr := &APIError{StatusCode: code}
	if err := json.NewDecoder(r).Decode(apierr); err != nil || apierr.Message == "" {
		apierr.Message = http.StatusText(code)
	}
	return apierr
}

func hasStatus(err error, code int) bool {
	var apierr *APIError
	return errors.As(err, &apierr) && apierr.StatusCode == code
}

func IsNotFound(err error) bool     { return hasStatus(err, http.StatusNotFound) }
func IsForbidden(err error) bool    { return hasStatus(err, http.StatusForbidden) }
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }
func IsValidation(err error) bool   { return hasStatus(err, http.StatusBadRequest) }
