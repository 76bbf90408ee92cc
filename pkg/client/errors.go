package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/falcon-client/pkg/auth"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

// Common errors returned by the client.
var (
	// ErrConfigurationInvalid is returned by New for an unusable Config.
	ErrConfigurationInvalid = auth.ErrConfigurationInvalid

	// ErrAuthenticationFailed is returned when no bearer token could be obtained.
	ErrAuthenticationFailed = auth.ErrAuthenticationFailed

	// ErrTransportFailure matches every *FalconError: a request that failed on
	// the network or was answered with a non-2xx status.
	ErrTransportFailure = errors.New("transport failure")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = retry.ErrRetryExhausted

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = retry.ErrContextCancelled
)

// ErrorClass represents a classification of request failures. It is used
// for metrics and logs only; every class is retried the same way.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 and 403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus maps an HTTP status to an ErrorClass.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// APIError is one entry of the "errors" array the API embeds in its
// response envelopes.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e APIError) String() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// FalconError is a request that failed on the network or returned a non-2xx
// status. errors.Is(err, ErrTransportFailure) holds for every FalconError.
type FalconError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// Body is the raw response body, if a response was received.
	Body []byte

	// APIErrors are the entries of the body's errors array, if any.
	APIErrors []APIError

	Err error
}

// Error implements the error interface.
func (e *FalconError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FalconError) Unwrap() error {
	return e.Err
}

// Is makes every FalconError match ErrTransportFailure.
func (e *FalconError) Is(target error) bool {
	return target == ErrTransportFailure
}

// StatusCodeOf returns the HTTP status of the FalconError in err's chain,
// or 0 when there is none.
func StatusCodeOf(err error) int {
	var fe *FalconError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// parseAPIErrors extracts the errors array from a JSON envelope. Bodies that
// are not JSON objects yield nil.
func parseAPIErrors(body []byte) []APIError {
	var envelope struct {
		Errors []APIError `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Errors
}

// FormatAPIErrors joins API errors into one message.
func FormatAPIErrors(errs []APIError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}
