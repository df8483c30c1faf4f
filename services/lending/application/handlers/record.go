package handlers

import (
	"net/http"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
)

// GetRecordHandler handles GET /borrow/{record_id} requests. Privileged only.
type GetRecordHandler struct {
	base
}

// NewGetRecordHandler returns a GetRecordHandler backed by the given services.
func NewGetRecordHandler(svc *appsvcs.Services, isProduction bool) *GetRecordHandler {
	return &GetRecordHandler{base: newBase(svc, isProduction)}
}

// Execute returns one lending record.
//
//	@Summary		Get loan
//	@Tags			borrow
//	@Produce		json
//	@Security		BearerAuth
//	@Param			record_id	path		string	true	"Lending record ID"	format(uuid)
//	@Success		200			{object}	RecordEnvelope
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/borrow/{record_id} [get]
func (h *GetRecordHandler) Execute(w http.ResponseWriter, r *http.Request) {
	recordID, ok := uuidParam(w, r, "record_id")
	if !ok {
		return
	}

	record, err := h.svc.Queries.GetRecord(r.Context(), recordID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, toRecordResponse(record), "")
}

// DeleteRecordHandler handles DELETE /borrow/{record_id} requests. Privileged only.
type DeleteRecordHandler struct {
	base
}

// NewDeleteRecordHandler returns a DeleteRecordHandler backed by the given services.
func NewDeleteRecordHandler(svc *appsvcs.Services, isProduction bool) *DeleteRecordHandler {
	return &DeleteRecordHandler{base: newBase(svc, isProduction)}
}

// Execute hard-deletes a returned lending record.
//
//	@Summary		Delete loan
//	@Description	Deletes a returned record. Active loans cannot be deleted.
//	@Tags			borrow
//	@Produce		json
//	@Security		BearerAuth
//	@Param			record_id	path		string	true	"Lending record ID"	format(uuid)
//	@Success		200			{object}	MessageEnvelope
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Router			/borrow/{record_id} [delete]
func (h *DeleteRecordHandler) Execute(w http.ResponseWriter, r *http.Request) {
	recordID, ok := uuidParam(w, r, "record_id")
	if !ok {
		return
	}

	if err := h.svc.Manager.DeleteRecord(r.Context(), recordID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, "lending record deleted")
}
