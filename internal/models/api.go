package models

const EventContentUpdated = "CONTENT_UPDATED"

// WSMessage is the only server to client push frame.
type WSMessage struct {
	Type string `json:"type"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message   string       `json:"message"`
	Code      string       `json:"code"`
	Errors    []FieldError `json:"errors,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

// ContentUpdatesChannel is the Redis pub/sub channel shared by every server
// instance.
const ContentUpdatesChannel = "content_updates"
