package handlers

import (
	"net/http"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
)

// PatchReturnHandler handles PATCH /borrow/return/{record_id} requests.
type PatchReturnHandler struct {
	base
}

// NewPatchReturnHandler returns a PatchReturnHandler backed by the given services.
func NewPatchReturnHandler(svc *appsvcs.Services, isProduction bool) *PatchReturnHandler {
	return &PatchReturnHandler{base: newBase(svc, isProduction)}
}

// Execute closes a loan and puts the copy back in stock.
//
//	@Summary		Return item
//	@Description	Closes the loan. Only the holder or a privileged caller may return it.
//	@Tags			borrow
//	@Produce		json
//	@Security		BearerAuth
//	@Param			record_id	path		string	true	"Lending record ID"	format(uuid)
//	@Success		200			{object}	ReturnEnvelope
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/borrow/return/{record_id} [patch]
func (h *PatchReturnHandler) Execute(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := uuidParam(w, r, "record_id")
	if !ok {
		return
	}

	confirmation, err := h.svc.Manager.Return(r.Context(), recordID, who)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, ReturnResponse{
		RecordID:   confirmation.RecordID,
		ItemID:     confirmation.ItemID,
		ReturnedAt: confirmation.ReturnedAt,
	}, "item returned successfully")
}
