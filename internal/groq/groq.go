// Package groq holds plumbing shared by the transcription and chat clients.
package groq

import (
	"net/http"
	"time"

	"github.com/fluesterlabs/fluestern/internal/config"
)

// Error is a structured error returned by the API inside a 200 or non-200
// response body.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrorEnvelope matches the {"error":{"message":...}} shape of API failures.
type ErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AsError converts a decoded envelope into an *Error, or nil when the
// response carried no error field.
func (e ErrorEnvelope) AsError() error {
	if e.Error == nil {
		return nil
	}
	return &Error{Message: e.Error.Message}
}

// Client carries connection settings shared by both endpoints.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.Key,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}
}

// Authorize sets the bearer token header.
func (c *Client) Authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}
