package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/infrastructure/persistence/memory"
)

// lendingMachine drives random borrow/return/delete sequences against the
// memory store and checks stock + active loans == total copies after every step.
type lendingMachine struct {
	store   *memory.Store
	manager *LendingManager
	items   []models.CatalogItem
	holders []uuid.UUID
	loans   map[uuid.UUID]*models.LendingRecord
	closed  []uuid.UUID
}

func newLendingMachine(t *rapid.T) *lendingMachine {
	store := memory.New()
	m := &lendingMachine{
		store: store,
		loans: make(map[uuid.UUID]*models.LendingRecord),
	}
	for i, n := 0, rapid.IntRange(1, 3).Draw(t, "items"); i < n; i++ {
		total := rapid.IntRange(0, 4).Draw(t, "total")
		item := models.CatalogItem{ID: uuid.New(), Title: "item", StockQuantity: total, TotalCopies: total}
		if err := store.Seed(item); err != nil {
			t.Fatalf("seed: %v", err)
		}
		m.items = append(m.items, item)
	}
	for i := 0; i < 3; i++ {
		m.holders = append(m.holders, uuid.New())
	}
	m.manager = NewLendingManager(store, store, Policy{
		PrivilegedRole:          "admin",
		EnforceSingleActiveLoan: rapid.Bool().Draw(t, "single_active"),
	}, logger.Nop())
	return m
}

func (m *lendingMachine) borrow(t *rapid.T) {
	item := rapid.SampledFrom(m.items).Draw(t, "item")
	holder := rapid.SampledFrom(m.holders).Draw(t, "holder")
	before := m.store.Stock(item.ID)

	r, err := m.manager.Borrow(context.Background(), holder, item.ID)
	switch {
	case err == nil:
		if before <= 0 {
			t.Fatalf("borrow succeeded with stock %d", before)
		}
		m.loans[r.ID] = r
	case errors.Is(err, domain.ErrNotAvailable):
		if before > 0 {
			t.Fatalf("NotAvailable with stock %d", before)
		}
	case errors.Is(err, domain.ErrAlreadyBorrowed):
	default:
		t.Fatalf("unexpected borrow error: %v", err)
	}
}

func (m *lendingMachine) returnLoan(t *rapid.T) {
	if len(m.loans) == 0 {
		t.Skip("no active loans")
	}
	ids := make([]uuid.UUID, 0, len(m.loans))
	for id := range m.loans {
		ids = append(ids, id)
	}
	id := rapid.SampledFrom(ids).Draw(t, "loan")
	loan := m.loans[id]

	caller := models.Identity{HolderID: loan.HolderID}
	switch rapid.IntRange(0, 2).Draw(t, "caller") {
	case 1:
		caller = models.Identity{HolderID: uuid.New(), Role: "Admin"}
	case 2:
		caller = models.Identity{HolderID: uuid.New(), Role: "member"}
	}

	_, err := m.manager.Return(context.Background(), id, caller)
	if caller.Role == "member" {
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected Forbidden for stranger, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	delete(m.loans, id)
	m.closed = append(m.closed, id)
}

func (m *lendingMachine) returnAgain(t *rapid.T) {
	if len(m.closed) == 0 {
		t.Skip("nothing returned yet")
	}
	id := rapid.SampledFrom(m.closed).Draw(t, "closed")
	_, err := m.manager.Return(context.Background(), id, models.Identity{HolderID: uuid.New(), Role: "admin"})
	if !errors.Is(err, domain.ErrAlreadyReturned) && !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected AlreadyReturned, got %v", err)
	}
}

func (m *lendingMachine) deleteClosed(t *rapid.T) {
	if len(m.closed) == 0 {
		t.Skip("nothing returned yet")
	}
	i := rapid.IntRange(0, len(m.closed)-1).Draw(t, "closed_index")
	if err := m.manager.DeleteRecord(context.Background(), m.closed[i]); err != nil {
		t.Fatalf("delete returned record: %v", err)
	}
	m.closed = append(m.closed[:i], m.closed[i+1:]...)
}

func (m *lendingMachine) check(t *rapid.T) {
	for _, item := range m.items {
		stock := m.store.Stock(item.ID)
		active := m.store.ActiveLoans(item.ID)
		if stock < 0 {
			t.Fatalf("item %s: negative stock %d", item.ID, stock)
		}
		if stock+active != item.TotalCopies {
			t.Fatalf("item %s: stock %d + active %d != total %d", item.ID, stock, active, item.TotalCopies)
		}
	}
}

func TestConservationLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newLendingMachine(t)
		t.Repeat(map[string]func(*rapid.T){
			"borrow":       m.borrow,
			"return":       m.returnLoan,
			"return_again": m.returnAgain,
			"delete":       m.deleteClosed,
			"":             m.check,
		})
	})
}
