package services

import (
	"github.com/ghuser/lendingdesk/pkg/app"
	"github.com/ghuser/lendingdesk/pkg/cache"
	"github.com/ghuser/lendingdesk/services/lending/infrastructure/persistence/postgres"
)

// Services is the application-layer service container for this bounded context.
// It wires the lending manager and query facade with their infrastructure.
type Services struct {
	Manager *LendingManager
	Queries *LendingQueries
	Policy  Policy
}

// PolicyFrom reads the lending policy out of the application config.
func PolicyFrom(a *app.Application) Policy {
	if a.Config == nil {
		return Policy{PrivilegedRole: "admin"}
	}
	return Policy{
		PrivilegedRole:          a.Config.PrivilegedRole,
		EnforceSingleActiveLoan: a.Config.EnforceSingleActiveLoan,
	}
}

// New wires all lending application services with infrastructure from the Application container.
func New(a *app.Application) *Services {
	policy := PolicyFrom(a)
	records := postgres.NewRecordReader(a.Db)
	catalog := postgres.NewCatalogReader(a.Db)

	var outbox postgres.OutboxPublisher
	if a.EventBus != nil {
		outbox = a.EventBus
	}
	var availability AvailabilityCache
	if a.Redis != nil {
		availability = cache.NewAvailabilityCache(a.Redis)
	}

	return &Services{
		Manager: NewLendingManager(postgres.NewTransactor(a.Db, outbox), records, policy, a.Logger),
		Queries: NewLendingQueries(records, catalog, availability, a.Logger),
		Policy:  policy,
	}
}
