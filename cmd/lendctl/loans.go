package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID: %w", name, err)
	}
	return id, nil
}

func newBorrowCmd(c *cli) *cobra.Command {
	var holder, item string
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Lend one copy of an item to a holder",
		Example: `  lendctl borrow --holder 550e8400-e29b-41d4-a716-446655440000 \
    --item 3f6c1a52-8f0e-4c1e-9a55-1c2d3e4f5a6b`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			holderID, err := parseID("--holder", holder)
			if err != nil {
				return err
			}
			itemID, err := parseID("--item", item)
			if err != nil {
				return err
			}

			svcs, closeFn, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			record, err := svcs.Manager.Borrow(cmd.Context(), holderID, itemID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "holder ID (required)")
	cmd.Flags().StringVar(&item, "item", "", "catalog item ID (required)")
	_ = cmd.MarkFlagRequired("holder")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newReturnCmd(c *cli) *cobra.Command {
	var callerID, role string
	cmd := &cobra.Command{
		Use:   "return <record-id>",
		Short: "Close a loan on behalf of a caller",
		Long: `Return closes the loan as the given caller. The caller must be the
holder of the loan or carry the privileged role.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID("record-id", args[0])
			if err != nil {
				return err
			}
			caller, err := parseID("--caller", callerID)
			if err != nil {
				return err
			}

			svcs, closeFn, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			confirmation, err := svcs.Manager.Return(cmd.Context(), recordID, models.Identity{HolderID: caller, Role: role})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), confirmation)
		},
	}
	cmd.Flags().StringVar(&callerID, "caller", "", "ID of the caller returning the item (required)")
	cmd.Flags().StringVar(&role, "role", "", "caller role")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var (
		holder, status string
		limit, offset  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List lending records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repositories.RecordFilter{Limit: limit, Offset: offset}
			if holder != "" {
				id, err := parseID("--holder", holder)
				if err != nil {
					return err
				}
				filter.HolderID = &id
			}
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &st
			}

			svcs, closeFn, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := svcs.Queries.ListRecords(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "only this holder's records")
	cmd.Flags().StringVar(&status, "status", "", "borrowed, returned or overdue")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default 50, max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <record-id>",
		Short: "Show one lending record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID("record-id", args[0])
			if err != nil {
				return err
			}

			svcs, closeFn, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			record, err := svcs.Queries.GetRecord(cmd.Context(), recordID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a returned lending record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID("record-id", args[0])
			if err != nil {
				return err
			}

			svcs, closeFn, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svcs.Manager.DeleteRecord(cmd.Context(), recordID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", recordID)
			return err
		},
	}
}
