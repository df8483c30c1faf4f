package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghuser/lendingdesk/pkg/auth"
	"github.com/ghuser/lendingdesk/pkg/config"
)

var errTokenInProduction = errors.New("token minting is disabled in production")

func newTokenCmd(c *cli) *cobra.Command {
	var (
		holder, role string
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Long: `Token signs a short-lived bearer token with TOKEN_SIGNING_KEY. Real
tokens are issued by the identity service; this exists for development.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Environment == config.EnvProduction {
				return errTokenInProduction
			}
			holderID, err := parseID("--holder", holder)
			if err != nil {
				return err
			}

			tok, err := auth.NewTokenVerifier([]byte(c.cfg.TokenSigningKey)).
				Sign(auth.Identity{HolderID: holderID, Role: role}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "holder ID to put in the subject (required)")
	cmd.Flags().StringVar(&role, "role", "member", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("holder")
	return cmd
}
