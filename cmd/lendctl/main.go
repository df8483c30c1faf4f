// Command lendctl is the operator CLI for the lending desk: migrations,
// direct borrow/return against the database, record administration and dev
// token minting.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ghuser/lendingdesk/pkg/app"
	"github.com/ghuser/lendingdesk/pkg/config"
	"github.com/ghuser/lendingdesk/pkg/database"
	"github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/pkg/logger"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
	lendingEvents "github.com/ghuser/lendingdesk/services/lending/domain/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries state shared by subcommands.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "lendctl",
		Short:         "Operate the lending desk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(c),
		newBorrowCmd(c),
		newReturnCmd(c),
		newListCmd(c),
		newGetCmd(c),
		newDeleteCmd(c),
		newTokenCmd(c),
	)
	return root
}

// services opens the database and event bus and wires the lending services.
// The returned func releases both.
func (c *cli) services(ctx context.Context) (*appsvcs.Services, func(), error) {
	pool, err := database.NewPool(ctx, c.cfg.DatabaseURL, database.Options{
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		TxTimeout:    time.Duration(c.cfg.DatabaseTxTimeoutS) * time.Second,
	}, c.log)
	if err != nil {
		return nil, nil, err
	}
	bus, err := events.NewEventBus(c.cfg, c.log)
	if err != nil {
		_ = pool.Close()
		return nil, nil, err
	}

	if err := bus.EnsureTopics(lendingEvents.TopicLoanBorrowed, lendingEvents.TopicLoanReturned); err != nil {
		_ = bus.Close()
		_ = pool.Close()
		return nil, nil, err
	}

	svcs := appsvcs.New(&app.Application{
		Config:   c.cfg,
		Db:       pool,
		Logger:   c.log,
		EventBus: bus,
	})
	closeFn := func() {
		_ = bus.Close()
		_ = pool.Close()
	}
	return svcs, closeFn, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
