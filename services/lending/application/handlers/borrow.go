package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	pkgvalidator "github.com/ghuser/lendingdesk/pkg/validator"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
)

// PostBorrowHandler handles POST /borrow requests.
type PostBorrowHandler struct {
	base
}

// NewPostBorrowHandler returns a PostBorrowHandler backed by the given services.
func NewPostBorrowHandler(svc *appsvcs.Services, isProduction bool) *PostBorrowHandler {
	return &PostBorrowHandler{base: newBase(svc, isProduction)}
}

// Execute lends one copy of an item to the caller.
//
//	@Summary		Borrow item
//	@Description	Lends one copy of the item to the authenticated holder. Fails when no copy is available.
//	@Tags			borrow
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		BorrowRequest	true	"Item to borrow"
//	@Success		201		{object}	RecordEnvelope
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/borrow [post]
func (h *PostBorrowHandler) Execute(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}

	req, ok := pkgvalidator.ValidateRequest[BorrowRequest](w, r)
	if !ok {
		return
	}

	record, err := h.svc.Manager.Borrow(r.Context(), who.HolderID, uuid.MustParse(req.ItemID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusCreated, toRecordResponse(record), "item borrowed successfully")
}
