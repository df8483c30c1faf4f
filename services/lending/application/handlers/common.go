// Package handlers exposes the lending operations over HTTP. Every response
// uses the httpx.Envelope shape.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/auth"
	"github.com/ghuser/lendingdesk/pkg/errhttp"
	"github.com/ghuser/lendingdesk/pkg/httpx"
	"github.com/ghuser/lendingdesk/pkg/telemetry"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
)

// base carries what every lending handler needs.
type base struct {
	svc          *appsvcs.Services
	isProduction bool
}

func newBase(svc *appsvcs.Services, isProduction bool) base {
	return base{svc: svc, isProduction: isProduction}
}

func (b base) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errhttp.StatusOf(err) >= http.StatusInternalServerError {
		telemetry.CaptureError(r.Context(), err)
	}
	errhttp.WriteError(w, err, b.isProduction)
}

// caller returns the authenticated identity or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, err := auth.IdentityFromCtx(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
		return models.Identity{}, false
	}
	return models.Identity{HolderID: id.HolderID, Role: id.Role}, true
}

// uuidParam parses the chi URL parameter name or writes 400.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads limit and offset from the query string. Absent values are
// zero and left for the query facade to default.
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	if limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httpx.JSONError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}
