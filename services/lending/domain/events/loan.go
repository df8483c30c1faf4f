package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics published by the lending context. Both are written through the
// transactional outbox, so a consumer sees an event only for a committed change.
const (
	TopicLoanBorrowed = "lending.borrowed"
	TopicLoanReturned = "lending.returned"
)

// SchemaVersion of both loan events; increment on breaking changes.
const loanEventVersion = 1

// LoanBorrowedEvent is written after a copy has been lent out.
type LoanBorrowedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    int       `json:"version"`
	RecordID   uuid.UUID `json:"record_id"`
	HolderID   uuid.UUID `json:"holder_id"`
	ItemID     uuid.UUID `json:"item_id"`
	DueAt      time.Time `json:"due_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLoanBorrowed stamps a fresh event id and the current schema version.
func NewLoanBorrowed(recordID, holderID, itemID uuid.UUID, borrowedAt, dueAt time.Time) LoanBorrowedEvent {
	return LoanBorrowedEvent{
		EventID:    uuid.New(),
		Version:    loanEventVersion,
		RecordID:   recordID,
		HolderID:   holderID,
		ItemID:     itemID,
		DueAt:      dueAt,
		OccurredAt: borrowedAt,
	}
}

func (e LoanBorrowedEvent) EventKey() string   { return e.EventID.String() }
func (e LoanBorrowedEvent) SchemaVersion() int { return e.Version }

// LoanReturnedEvent is written after a copy has come back.
type LoanReturnedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    int       `json:"version"`
	RecordID   uuid.UUID `json:"record_id"`
	HolderID   uuid.UUID `json:"holder_id"`
	ItemID     uuid.UUID `json:"item_id"`
	ReturnedBy uuid.UUID `json:"returned_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLoanReturned stamps a fresh event id and the current schema version.
// returnedBy differs from holderID when a privileged caller closes the loan.
func NewLoanReturned(recordID, holderID, itemID, returnedBy uuid.UUID, returnedAt time.Time) LoanReturnedEvent {
	return LoanReturnedEvent{
		EventID:    uuid.New(),
		Version:    loanEventVersion,
		RecordID:   recordID,
		HolderID:   holderID,
		ItemID:     itemID,
		ReturnedBy: returnedBy,
		OccurredAt: returnedAt,
	}
}

func (e LoanReturnedEvent) EventKey() string   { return e.EventID.String() }
func (e LoanReturnedEvent) SchemaVersion() int { return e.Version }
