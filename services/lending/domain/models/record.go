package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoanPeriod is the fixed time between borrowing and the due date.
const LoanPeriod = 14 * 24 * time.Hour

// Status is the lifecycle state of a lending record.
type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
	// StatusOverdue is never stored. It is derived from a Borrowed record whose
	// due date has passed.
	StatusOverdue Status = "overdue"
)

// ParseStatus accepts any casing of the three status names.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusBorrowed, StatusReturned, StatusOverdue:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

func (s Status) String() string { return string(s) }

// LendingRecord is one loan of one copy of an item to one holder.
type LendingRecord struct {
	ID         uuid.UUID
	HolderID   uuid.UUID
	ItemID     uuid.UUID
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
	Status     Status

	// ItemTitle is populated by read queries only.
	ItemTitle string
}

// NewLendingRecord builds a Borrowed record due LoanPeriod after borrowedAt.
// The ID is left for the store to assign.
func NewLendingRecord(holderID, itemID uuid.UUID, borrowedAt time.Time) *LendingRecord {
	borrowedAt = borrowedAt.UTC()
	return &LendingRecord{
		HolderID:   holderID,
		ItemID:     itemID,
		BorrowedAt: borrowedAt,
		DueAt:      borrowedAt.Add(LoanPeriod),
		Status:     StatusBorrowed,
	}
}

// IsActive reports whether the record still holds a copy of the item.
func (r *LendingRecord) IsActive() bool {
	return r.Status != StatusReturned
}

// EffectiveStatus returns Overdue for an active loan past its due date and the
// stored status otherwise.
func (r *LendingRecord) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusBorrowed && now.After(r.DueAt) {
		return StatusOverdue
	}
	return r.Status
}

// Identity is the caller on whose behalf an operation runs.
type Identity struct {
	HolderID uuid.UUID
	Role     string
}

// IsPrivileged compares the role against marker ignoring case. An empty
// marker grants nothing.
func (i Identity) IsPrivileged(marker string) bool {
	return marker != "" && strings.EqualFold(i.Role, marker)
}

// ReturnConfirmation is what a successful return reports back.
type ReturnConfirmation struct {
	RecordID   uuid.UUID
	ItemID     uuid.UUID
	ReturnedAt time.Time
}
