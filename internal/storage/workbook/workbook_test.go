package workbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"totalx/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func movement(who string, cents int64) core.Movement {
	return core.Movement{
		Principal: core.MustIdentity(who),
		Amount:    core.MoneyFromCents(cents),
		Timestamp: time.Date(2024, 3, 1, 10, 30, 15, 123, time.UTC),
	}
}

func TestWorkbookStore_AppendReadUndo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := core.PersonalKey(core.MustIdentity("@mario"))

	saved, err := s.Append(ctx, key, movement("@mario", 10000))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	_, err = s.Append(ctx, key, movement("@mario", -3050))
	require.NoError(t, err)
	_, err = s.Append(ctx, key, movement("@mario", 1))
	require.NoError(t, err)

	got, err := s.ReadAll(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "100.00", got[0].Amount.String())
	assert.Equal(t, "-30.50", got[1].Amount.String())
	assert.Equal(t, "0.01", got[2].Amount.String())
	assert.Equal(t, core.Identity("@mario"), got[0].Principal)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC), got[0].Timestamp)

	last, removed, err := s.UndoLast(ctx, key)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "0.01", last.Amount.String())
	assert.Equal(t, int64(3), last.ID)

	got, err = s.ReadAll(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWorkbookStore_FileLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Append(ctx, core.AdminKey(), movement("@root", 500))
	require.NoError(t, err)
	_, err = s.Append(ctx, core.PersonalKey(core.MustIdentity("@admin")), movement("@admin", 700))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(s.dir, "estratto_conto_admin.xlsx"))
	assert.FileExists(t, filepath.Join(s.dir, "personal", "estratto_conto_admin.xlsx"))

	// a personal owner named like the pool never shares its file
	pool, err := s.ReadAll(ctx, core.AdminKey())
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "5.00", pool[0].Amount.String())

	f, err := excelize.OpenFile(s.Path(core.AdminKey()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Movimenti")
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "movimento", "data"}, rows[0])
}

func TestWorkbookStore_HandleIsEscaped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := core.PersonalKey(core.MustIdentity("@../../etc"))

	_, err := s.Append(ctx, key, movement("@../../etc", 100))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.dir, "personal"), filepath.Dir(s.Path(key)))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.StoreKey{key}, keys)
}

func TestWorkbookStore_ResetAndKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mario := core.PersonalKey(core.MustIdentity("@mario"))

	_, err := s.Append(ctx, core.AdminKey(), movement("@root", 100))
	require.NoError(t, err)
	_, err = s.Append(ctx, mario, movement("@mario", 100))
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.StoreKey{core.AdminKey(), mario}, keys)

	require.NoError(t, s.Reset(ctx, mario))
	got, err := s.ReadAll(ctx, mario)
	require.NoError(t, err)
	assert.Empty(t, got)

	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.StoreKey{core.AdminKey()}, keys)

	_, removed, err := s.UndoLast(ctx, mario)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestWorkbookStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Append(ctx, core.AdminKey(), movement("@root", 100))
	require.NoError(t, err)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "leftover %s", e.Name())
	}
}

func TestWorkbookStore_Admins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root := core.MustIdentity("@root")

	require.NoError(t, s.AddAdmin(ctx, core.MustIdentity("@b"), root))
	require.NoError(t, s.AddAdmin(ctx, core.MustIdentity("@a"), root))
	require.NoError(t, s.AddAdmin(ctx, core.MustIdentity("@b"), root))

	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"@b", "@a"}, admins)

	require.NoError(t, s.RemoveAdmin(ctx, "@b"))
	admins, err = s.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"@a"}, admins)
}

func TestWorkbookStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ReadAll(context.Background(), core.PersonalKey(core.MustIdentity("@nobody")))
	require.NoError(t, err)
	assert.Empty(t, got)
}
