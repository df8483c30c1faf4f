package events

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/config"
	"github.com/ghuser/lendingdesk/pkg/database"
)

// The bus hands its pool and the caller's transaction straight to watermill-sql.
var (
	_ watermillsql.Beginner        = (*sql.DB)(nil)
	_ watermillsql.ContextExecutor = (*sql.Tx)(nil)
)

func newTestBus(t *testing.T) *EventBus {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	bus, err := NewEventBus(&config.Config{DatabaseURL: dsn, ServiceName: "events-test"}, nopLogger())
	if err != nil {
		t.Fatalf("new event bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func countMessages(t *testing.T, db *sql.DB, topic string) int {
	t.Helper()
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, watermillsql.DefaultPostgreSQLSchema{}.MessagesTable(topic))
	if err := db.QueryRowContext(context.Background(), q).Scan(&n); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func TestPublishInTx_VisibleOnlyAfterCommit(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()
	topic := "events_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	if err := bus.EnsureTopics(topic); err != nil {
		t.Fatalf("ensure topics: %v", err)
	}
	db := database.New(bus.DB(), 0, nopLogger())

	rollback := fmt.Errorf("rollback")
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := bus.PublishInTx(ctx, tx, topic, message.NewMessage(uuid.NewString(), []byte(`{}`))); err != nil {
			return err
		}
		return rollback
	})
	if err != rollback {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if n := countMessages(t, bus.DB(), topic); n != 0 {
		t.Fatalf("rolled back publish left %d messages", n)
	}

	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return bus.PublishInTx(ctx, tx, topic, message.NewMessage(uuid.NewString(), []byte(`{}`)))
	})
	if err != nil {
		t.Fatalf("committed publish: %v", err)
	}
	if n := countMessages(t, bus.DB(), topic); n != 1 {
		t.Fatalf("expected 1 message after commit, got %d", n)
	}
}
