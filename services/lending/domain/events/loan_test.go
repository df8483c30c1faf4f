package events_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgevents "github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/services/lending/domain/events"
)

func TestLoanBorrowedEvent_MessageRoundTrip(t *testing.T) {
	borrowedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := events.NewLoanBorrowed(uuid.New(), uuid.New(), uuid.New(), borrowedAt, borrowedAt.Add(14*24*time.Hour))

	msg, err := pkgevents.NewMessage(original)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if got := msg.Metadata.Get(pkgevents.MetadataEventID); got != original.EventID.String() {
		t.Errorf("event_id metadata: got %q, want %q", got, original.EventID)
	}
	if got := msg.Metadata.Get(pkgevents.MetadataEventVersion); got != strconv.Itoa(original.Version) {
		t.Errorf("event_version metadata: got %q", got)
	}

	var decoded events.LoanBorrowedEvent
	if err := pkgevents.Decode(msg, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.RecordID != original.RecordID || decoded.ItemID != original.ItemID || decoded.HolderID != original.HolderID {
		t.Errorf("ids mismatch: got %+v, want %+v", decoded, original)
	}
	if !decoded.DueAt.Equal(original.DueAt) {
		t.Errorf("DueAt: got %v, want %v", decoded.DueAt, original.DueAt)
	}
}

func TestLoanReturnedEvent_Fields(t *testing.T) {
	holder, admin := uuid.New(), uuid.New()
	evt := events.NewLoanReturned(uuid.New(), holder, uuid.New(), admin, time.Now())

	if evt.Version != 1 {
		t.Errorf("expected version 1, got %d", evt.Version)
	}
	if evt.EventID == uuid.Nil {
		t.Error("expected a generated event id")
	}
	if evt.HolderID != holder || evt.ReturnedBy != admin {
		t.Errorf("holder/returned_by mismatch: %+v", evt)
	}
	if evt.EventKey() != evt.EventID.String() {
		t.Errorf("EventKey: got %q", evt.EventKey())
	}
}

func TestLoanEvents_UniqueIDs(t *testing.T) {
	a := events.NewLoanBorrowed(uuid.New(), uuid.New(), uuid.New(), time.Now(), time.Now())
	b := events.NewLoanBorrowed(uuid.New(), uuid.New(), uuid.New(), time.Now(), time.Now())
	if a.EventID == b.EventID {
		t.Fatal("expected distinct event ids")
	}
}
