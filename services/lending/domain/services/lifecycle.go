// Package services holds the lending record state machine. The rules here are
// pure functions over domain types so the manager and the tests share them.
//
//	Borrowed --return--> Returned --delete--> (gone)
//	Borrowed --(now > due)--> Overdue   (derived, never stored)
package services

import (
	"fmt"

	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
)

// CanReturn decides whether caller may return record. Authorization is
// checked before state, so a stranger learns nothing about whether the loan
// is still open.
func CanReturn(record *models.LendingRecord, caller models.Identity, privilegedMarker string) error {
	if record.HolderID != caller.HolderID && !caller.IsPrivileged(privilegedMarker) {
		return fmt.Errorf("return record %s: %w", record.ID, domain.ErrForbidden)
	}
	if record.Status == models.StatusReturned {
		return fmt.Errorf("return record %s: %w", record.ID, domain.ErrAlreadyReturned)
	}
	return nil
}

// CanDelete allows deleting a record only once the copy is back.
func CanDelete(record *models.LendingRecord) error {
	if record.Status != models.StatusReturned {
		return fmt.Errorf("delete record %s: %w", record.ID, domain.ErrRecordActive)
	}
	return nil
}

// CanBorrow checks the stock observed under lock.
func CanBorrow(stock int) error {
	if stock <= 0 {
		return domain.ErrNotAvailable
	}
	return nil
}
