package handlers

import (
	"net/http"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
)

// GetAvailabilityHandler handles GET /items/{item_id}/availability requests.
type GetAvailabilityHandler struct {
	base
}

// NewGetAvailabilityHandler returns a GetAvailabilityHandler backed by the given services.
func NewGetAvailabilityHandler(svc *appsvcs.Services, isProduction bool) *GetAvailabilityHandler {
	return &GetAvailabilityHandler{base: newBase(svc, isProduction)}
}

// Execute returns a display snapshot of an item's copies. The figure may be
// slightly stale and never decides whether a borrow succeeds.
//
//	@Summary		Item availability
//	@Tags			items
//	@Produce		json
//	@Security		BearerAuth
//	@Param			item_id	path		string	true	"Catalog item ID"	format(uuid)
//	@Success		200		{object}	AvailabilityEnvelope
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/items/{item_id}/availability [get]
func (h *GetAvailabilityHandler) Execute(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "item_id")
	if !ok {
		return
	}

	availability, err := h.svc.Queries.Availability(r.Context(), itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, availability, "")
}
