package router

import (
	"errors"
	"fmt"
)

// Configuration errors. They are returned wrapped in a *ConfigError.
var (
	ErrMethodMissing    = errors.New("HTTP method missing in spec")
	ErrHandlerMissing   = errors.New("handler missing in spec")
	ErrInvalidRouteArgs = errors.New("invalid route arguments")
	ErrInvalidPath      = errors.New("invalid route path")
	ErrUnknownRoute     = errors.New("unknown route")
	ErrMissingParam     = errors.New("missing route parameter")
)

// ConfigError is a setup mistake detected while registering routes or building URLs.
type ConfigError struct {
	// Path is the offending route path, or the route name for URL lookups.
	Path string
	Err  error
}

// Error returns the cause followed by the path, e.g. "HTTP method missing in spec /users".
func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " " + e.Path
}

// Unwrap returns the cause.
func (e *ConfigError) Unwrap() error { return e.Err }

func configError(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}

// HTTPError represents an HTTP error with a status code and message.
// Handlers pass it to Router.WriteError to control the response.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
