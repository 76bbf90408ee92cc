package falcon

import (
	"errors"
	"net/http"
	"sync"

	"github.com/Sternrassler/falcon-client/pkg/client"
)

// Result is the outcome of an operation that reports failures as data.
type Result[T any] struct {
	// StatusCode of the last response. A failure without a response reports 500.
	StatusCode int

	// Data holds the items. On failure it holds what was gathered before.
	Data T

	// RawResponse is the body of the last response.
	RawResponse string

	// ErrorMessage is set on failure or when a response carried API errors.
	ErrorMessage string

	APIErrors []client.APIError
	Err       error
}

// Success reports a 2xx outcome without error.
func (r Result[T]) Success() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// responseLog remembers the last response and every API error seen while an
// operation runs. Chunks may record concurrently.
type responseLog struct {
	mu        sync.Mutex
	status    int
	raw       []byte
	apiErrors []client.APIError
}

func (l *responseLog) record(resp *client.Response) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = resp.StatusCode
	l.raw = resp.Body
	l.apiErrors = append(l.apiErrors, resp.APIErrors...)
}

func (l *responseLog) snapshot() (int, string, []client.APIError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := l.status
	if status == 0 {
		status = http.StatusOK
	}
	return status, string(l.raw), l.apiErrors
}

func succeeded[T any](data T, l *responseLog) Result[T] {
	status, raw, apiErrors := l.snapshot()
	r := Result[T]{StatusCode: status, Data: data, RawResponse: raw, APIErrors: apiErrors}
	if len(apiErrors) > 0 {
		r.ErrorMessage = "API-level error found in response: " + client.FormatAPIErrors(apiErrors)
	}
	return r
}

func failed[T any](data T, err error, l *responseLog) Result[T] {
	_, raw, apiErrors := l.snapshot()
	r := Result[T]{
		StatusCode:   http.StatusInternalServerError,
		Data:         data,
		RawResponse:  raw,
		ErrorMessage: err.Error(),
		APIErrors:    apiErrors,
		Err:          err,
	}
	var fe *client.FalconError
	if errors.As(err, &fe) {
		if fe.StatusCode > 0 {
			r.StatusCode = fe.StatusCode
		}
		if len(fe.Body) > 0 {
			r.RawResponse = string(fe.Body)
		}
		r.APIErrors = append(r.APIErrors, fe.APIErrors...)
	}
	return r
}
