package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

// GetMyRecordsHandler handles GET /borrow/my requests.
type GetMyRecordsHandler struct {
	base
}

// NewGetMyRecordsHandler returns a GetMyRecordsHandler backed by the given services.
func NewGetMyRecordsHandler(svc *appsvcs.Services, isProduction bool) *GetMyRecordsHandler {
	return &GetMyRecordsHandler{base: newBase(svc, isProduction)}
}

// Execute lists the caller's own lending records, newest first.
//
//	@Summary		List my loans
//	@Tags			borrow
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (default 50, max 200)"
//	@Param			offset	query		int	false	"Records to skip"
//	@Success		200		{object}	RecordListEnvelope
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/borrow/my [get]
func (h *GetMyRecordsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	records, err := h.svc.Queries.ListForHolder(r.Context(), who.HolderID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, toRecordResponses(records), "")
}

// GetRecordsHandler handles GET /borrow requests. Privileged only.
type GetRecordsHandler struct {
	base
}

// NewGetRecordsHandler returns a GetRecordsHandler backed by the given services.
func NewGetRecordsHandler(svc *appsvcs.Services, isProduction bool) *GetRecordsHandler {
	return &GetRecordsHandler{base: newBase(svc, isProduction)}
}

// Execute lists all lending records with optional filters.
//
//	@Summary		List all loans
//	@Description	Lists every lending record. Status filters on the effective status, so "overdue" finds late loans.
//	@Tags			borrow
//	@Produce		json
//	@Security		BearerAuth
//	@Param			holder_id	query		string	false	"Filter by holder"	format(uuid)
//	@Param			status		query		string	false	"Filter by status"	Enums(borrowed, returned, overdue)
//	@Param			limit		query		int		false	"Page size (default 50, max 200)"
//	@Param			offset		query		int		false	"Records to skip"
//	@Success		200			{object}	RecordListEnvelope
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Router			/borrow [get]
func (h *GetRecordsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	filter, ok := recordFilter(w, r)
	if !ok {
		return
	}

	records, err := h.svc.Queries.ListRecords(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, toRecordResponses(records), "")
}

func recordFilter(w http.ResponseWriter, r *http.Request) (repositories.RecordFilter, bool) {
	var filter repositories.RecordFilter
	q := r.URL.Query()

	if raw := q.Get("holder_id"); raw != "" {
		holder, err := uuid.Parse(raw)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "holder_id must be a valid UUID")
			return filter, false
		}
		filter.HolderID = &holder
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "status must be one of: borrowed returned overdue")
			return filter, false
		}
		filter.Status = &status
	}

	limit, offset, ok := pageParams(w, r)
	if !ok {
		return filter, false
	}
	filter.Limit, filter.Offset = limit, offset
	return filter, true
}
