package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totalx/internal/admin"
	"totalx/internal/backend"
	"totalx/internal/config"
	"totalx/internal/core"
	"totalx/internal/events"
	"totalx/internal/ledger"
	"totalx/internal/services"
	"totalx/internal/storage"
	"totalx/internal/storage/memory"
)

var root = core.MustIdentity("@Elanyx03")

func testConfig() *config.Config {
	return &config.Config{
		FixedAdmins:      []string{root.String()},
		AdminPolicy:      string(admin.PolicyRoot),
		Currency:         "EUR",
		Timezone:         "Europe/Rome",
		SummaryCacheSize: 16,
		SummaryCacheTTL:  10 * time.Minute,
	}
}

// openSQLite opens its own connection to the shared file, the way a second
// process would.
func openSQLite(t *testing.T, path string) storage.Repository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewLedgerService_SharedBackendSeesOtherProcesses(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	path := filepath.Join(t.TempDir(), "totalx.db")

	serverRepo := openSQLite(t, path)
	serverAdmins, err := admin.Load(ctx, cfg.Admins(), serverRepo, cfg.Policy())
	require.NoError(t, err)
	server, summaries := newLedgerService(cfg, backend.SQLiteBackend,
		&backend.BackendResult{Repository: serverRepo, Publisher: events.Nop{}}, serverAdmins)
	assert.Nil(t, summaries, "shared backends are not cached")

	ctlRepo := openSQLite(t, path)
	ctlAdmins, err := admin.Load(ctx, cfg.Admins(), ctlRepo, cfg.Policy())
	require.NoError(t, err)
	ctl := services.NewLedgerService(ledger.New(ledger.NewStores(ctlRepo)), ctlAdmins)

	mario := core.MustIdentity("@mario")
	total, err := server.Total(ctx, mario)
	require.NoError(t, err)
	assert.Equal(t, "0.00", total.Balance.String())

	_, err = ctl.Add(ctx, mario, "100")
	require.NoError(t, err)
	added, err := server.Add(ctx, mario, "100")
	require.NoError(t, err)
	assert.Equal(t, "200.00", added.Balance.String())

	_, err = ctl.Subtract(ctx, mario, "50")
	require.NoError(t, err)
	total, err = server.Total(ctx, mario)
	require.NoError(t, err)
	assert.Equal(t, "150.00", total.Balance.String())

	luigi := core.MustIdentity("@luigi")
	_, err = ctl.SetAdmin(ctx, root, luigi.String())
	require.NoError(t, err)
	res, err := server.Add(ctx, luigi, "5")
	require.NoError(t, err)
	assert.True(t, res.StoreKey.IsAdmin(), "a grant made elsewhere routes to the admin store")

	list, err := server.AdminList(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{root, luigi}, list.Admins)
}

func TestNewLedgerService_MemoryBackendIsCached(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := memory.New()
	registry, err := admin.Load(ctx, cfg.Admins(), store, cfg.Policy())
	require.NoError(t, err)

	svc, summaries := newLedgerService(cfg, backend.MemoryBackend,
		&backend.BackendResult{Repository: store, Publisher: events.Nop{}}, registry)
	require.NotNil(t, summaries)

	_, err = svc.Add(ctx, core.MustIdentity("@mario"), "10")
	require.NoError(t, err)
	assert.Equal(t, 1, summaries.Len())
}

func TestNewLedgerService_RendersInConfiguredZone(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := memory.New()
	registry, err := admin.Load(ctx, cfg.Admins(), store, cfg.Policy())
	require.NoError(t, err)

	svc, _ := newLedgerService(cfg, backend.MemoryBackend,
		&backend.BackendResult{Repository: store, Publisher: events.Nop{}}, registry)
	res, err := svc.Add(ctx, core.MustIdentity("@mario"), "10")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Rome", res.Movement.Timestamp.Location().String())
}
