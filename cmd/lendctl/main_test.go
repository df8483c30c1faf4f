package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghuser/lendingdesk/pkg/auth"
	"github.com/ghuser/lendingdesk/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToken_SignsVerifiableToken(t *testing.T) {
	t.Setenv("ENVIRONMENT", config.EnvDevelopment)
	holder := uuid.New()

	out, err := run(t, "token", "--holder", holder.String(), "--role", "admin")
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)
	id, err := auth.NewTokenVerifier([]byte(cfg.TokenSigningKey)).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, holder, id.HolderID)
	assert.Equal(t, "admin", id.Role)
}

func TestToken_RefusedInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", config.EnvProduction)
	_, err := run(t, "token", "--holder", uuid.NewString())
	assert.ErrorIs(t, err, errTokenInProduction)
}

func TestArgumentValidation(t *testing.T) {
	t.Setenv("ENVIRONMENT", config.EnvDevelopment)
	tests := []struct {
		name string
		args []string
	}{
		{"borrow missing flags", []string{"borrow"}},
		{"borrow bad holder", []string{"borrow", "--holder", "x", "--item", uuid.NewString()}},
		{"return bad record", []string{"return", "42", "--caller", uuid.NewString()}},
		{"return missing caller", []string{"return", uuid.NewString()}},
		{"get no args", []string{"get"}},
		{"list bad status", []string{"list", "--status", "lost"}},
		{"token bad holder", []string{"token", "--holder", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
