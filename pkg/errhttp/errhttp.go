// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add an entry to statusBySentinel for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	"github.com/ghuser/lendingdesk/services/lending/domain"
)

// WriteError maps err to an HTTP status code and writes a failure envelope.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors.
//
// A 4xx response carries only the matched sentinel's text, never the wrapping
// chain. A 5xx goes through httpx.SafeError, which hides detail in production.
func WriteError(w http.ResponseWriter, err error, isProduction bool) {
	sentinel, status := match(err)
	msg := httpx.SafeError(err, status, isProduction)
	if sentinel != nil && status < http.StatusInternalServerError {
		msg = sentinel.Error()
	}
	httpx.JSONError(w, status, msg)
}

// StatusOf returns the HTTP status code for err.
func StatusOf(err error) int {
	_, status := match(err)
	return status
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{domain.ErrItemNotFound, http.StatusNotFound},
	{domain.ErrRecordNotFound, http.StatusNotFound},
	{domain.ErrNotAvailable, http.StatusBadRequest},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrAlreadyReturned, http.StatusConflict},
	{domain.ErrRecordActive, http.StatusConflict},
	{domain.ErrAlreadyBorrowed, http.StatusConflict},
	{domain.ErrTransient, http.StatusServiceUnavailable},
}

// match returns the first sentinel in err's chain and its status, or nil and
// 500 when none matches.
func match(err error) (error, int) {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return m.err, m.status
		}
	}
	return nil, http.StatusInternalServerError
}
