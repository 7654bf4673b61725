package common

import (
	"errors"
	"strings"
	"time"
)

// ErrorHandler is the JSON error payload returned by the HTTP surface.
type ErrorHandler struct {
	MessageType   string `json:"messageType"`
	Text          string `json:"text"`
	Code          string `json:"code,omitempty"`
	CorrelationId string `json:"correlationId,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// NewErrorHandler builds an error payload from its parts.
func NewErrorHandler(messageType string, text error, code string, correlationId string, timestamp string) *ErrorHandler {
	return &ErrorHandler{
		MessageType:   messageType,
		Text:          text.Error(),
		Code:          code,
		CorrelationId: correlationId,
		Timestamp:     timestamp,
	}
}

// NewTimestampedErrorHandler builds an error payload stamped with the current
// UTC time.
func NewTimestampedErrorHandler(messageType string, text error, code string, correlationId string) *ErrorHandler {
	return NewErrorHandler(messageType, text, code, correlationId, time.Now().UTC().Format(time.RFC3339))
}

func NewErrNotFound(elementId string) error {
	return errors.New("404 Not Found: " + elementId)
}

func NewErrBadRequest(message string) error {
	return errors.New("400 Bad Request: " + message)
}

func NewInternalServerError(message string) error {
	return errors.New("500 Internal Server Error: " + message)
}

func IsErrNotFound(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "404 Not Found: ")
}

func IsErrBadRequest(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "400 Bad Request: ")
}
