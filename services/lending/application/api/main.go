package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/lendingdesk/pkg/app"
	"github.com/ghuser/lendingdesk/pkg/auth"
	"github.com/ghuser/lendingdesk/services/lending/application/handlers"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
)

// LendingRoutes registers lending endpoints on the provided chi router.
func LendingRoutes(r chi.Router, a *app.Application) {
	Mount(r, appsvcs.New(a), auth.RequireAuth(a.Tokens, a.SessionStore, a.Logger), a)
}

// Mount registers the lending endpoints for svcs behind authn. Split from
// LendingRoutes so tests can mount against an in-memory store.
func Mount(r chi.Router, svcs *appsvcs.Services, authn func(http.Handler) http.Handler, a *app.Application) {
	prod := a.IsProduction()
	privileged := auth.RequirePrivileged(svcs.Policy.PrivilegedRole, a.Logger)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/borrow", func(r chi.Router) {
			r.Post("/", handlers.NewPostBorrowHandler(svcs, prod).Execute)
			r.Get("/my", handlers.NewGetMyRecordsHandler(svcs, prod).Execute)
			r.Patch("/return/{record_id}", handlers.NewPatchReturnHandler(svcs, prod).Execute)

			r.Group(func(r chi.Router) {
				r.Use(privileged)
				r.Get("/", handlers.NewGetRecordsHandler(svcs, prod).Execute)
				r.Get("/{record_id}", handlers.NewGetRecordHandler(svcs, prod).Execute)
				r.Delete("/{record_id}", handlers.NewDeleteRecordHandler(svcs, prod).Execute)
			})
		})

		r.Get("/items/{item_id}/availability", handlers.NewGetAvailabilityHandler(svcs, prod).Execute)
	})
}
