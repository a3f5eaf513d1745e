package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totalx/internal/admin"
	"totalx/internal/core"
	"totalx/internal/ledger"
	"totalx/internal/reply"
	"totalx/internal/services"
	"totalx/internal/storage/memory"
)

type harness struct {
	app    *app
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	registry, err := admin.Load(context.Background(), []core.Identity{core.MustIdentity("@root")}, store, admin.PolicyRoot)
	require.NoError(t, err)
	svc := services.NewLedgerService(ledger.New(ledger.NewStores(store)), registry)

	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	h.app = &app{
		out:    h.out,
		errOut: h.errOut,
		open: func(context.Context) (*session, error) {
			return &session{svc: svc, close: func() error { return nil }}, nil
		},
	}
	return h
}

// run executes one command line as actor and returns the exit status.
func (h *harness) run(t *testing.T, actor string, args ...string) subcommands.ExitStatus {
	t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	h.app.actor = actor

	fs := flag.NewFlagSet("totalxctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "totalxctl")
	for _, c := range h.app.commands() {
		commander.Register(c, "")
	}
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background())
}

func TestCommands_PersonalFlow(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "add", "100"))
	assert.Equal(t, "Entrata registrata: +100.00\nSaldo attuale: 100.00\n", h.out.String())

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "subtract", "0,5"))
	assert.Contains(t, h.out.String(), "Saldo attuale: 99.50")

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "total"))
	assert.Equal(t, "Saldo totale: 99.50\n", h.out.String())

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "undo"))
	assert.Equal(t, reply.Undone+"\n", h.out.String())

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "reset"))
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "report"))
	assert.Equal(t, reply.NoMovements+"\n", h.out.String())
}

func TestCommands_Errors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "", "total"))
	assert.Contains(t, h.errOut.String(), "-actor")

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "@mario", "add"))

	assert.Equal(t, subcommands.ExitFailure, h.run(t, "@mario", "add", "abc"))
	assert.Equal(t, reply.AddUsage+"\n", h.errOut.String())

	assert.Equal(t, subcommands.ExitFailure, h.run(t, "@mario", "setadmin", "@luigi"))
	assert.Equal(t, reply.SetAdminDenied+"\n", h.errOut.String())

	assert.Equal(t, subcommands.ExitFailure, h.run(t, "@root", "setadmin", "@Root"))
	assert.Equal(t, reply.Protected(core.MustIdentity("@root"))+"\n", h.errOut.String())
}

func TestCommands_Admin(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@root", "setadmin", "luigi"))
	assert.Equal(t, reply.Granted(core.MustIdentity("@luigi"), true)+"\n", h.out.String())

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@luigi", "adminlist"))
	assert.Contains(t, h.out.String(), "@root")
	assert.Contains(t, h.out.String(), "@luigi")
}

func TestCommands_Export(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "add", "12"))

	out := filepath.Join(t.TempDir(), "mario.xlsx")
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "@mario", "export", "-o", out))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(h.out.String()), out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}
