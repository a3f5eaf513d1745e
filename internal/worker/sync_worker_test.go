package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totalx/internal/core"
	"totalx/internal/events"
	"totalx/internal/ledger"
	sheetsmem "totalx/internal/sheets/memory"
	"totalx/internal/storage/memory"
)

var (
	root  = core.MustIdentity("@root")
	mario = core.MustIdentity("@mario")
)

func setup(t *testing.T) (*ledger.Ledger, *sheetsmem.Writer, *SyncWorker) {
	t.Helper()
	l := ledger.New(ledger.NewStores(memory.New()))
	w := sheetsmem.New()
	return l, w, NewSyncWorker(l, w)
}

func mustAppend(t *testing.T, l *ledger.Ledger, key core.StoreKey, who core.Identity, cents int64) ledger.AppendResult {
	t.Helper()
	res, err := l.Append(context.Background(), key, who, core.MoneyFromCents(cents))
	require.NoError(t, err)
	return res
}

func TestHandleEvent_MirrorsAffectedStore(t *testing.T) {
	ctx := context.Background()
	l, w, sw := setup(t)

	key := core.PersonalKey(mario)
	mustAppend(t, l, key, mario, 10000)
	res := mustAppend(t, l, key, mario, -3000)

	err := sw.HandleEvent(ctx, events.MovementEvent(events.KindMovementAppended, key, res.Movement, res.Balance))
	require.NoError(t, err)

	doc, ok := w.Document("Estratto @mario")
	require.True(t, ok)
	assert.Len(t, doc.Rows, 2)
	assert.Equal(t, "70.00", doc.Trailer[2].Amount.String())
	assert.Equal(t, []string{"Estratto @mario"}, w.Tabs())
}

func TestHandleEvent_ResetWritesEmptyTab(t *testing.T) {
	ctx := context.Background()
	l, w, sw := setup(t)

	mustAppend(t, l, core.AdminKey(), root, 500)
	require.NoError(t, l.Reset(ctx, core.AdminKey()))
	require.NoError(t, sw.HandleEvent(ctx, events.ResetEvent(core.AdminKey(), root)))

	doc, ok := w.Document("Estratto admin")
	require.True(t, ok)
	assert.Empty(t, doc.Rows)
	assert.True(t, doc.Trailer[2].Amount.IsZero())
}

func TestHandleEvent_IgnoresAdminEvents(t *testing.T) {
	_, w, sw := setup(t)
	require.NoError(t, sw.HandleEvent(context.Background(), events.AdminEvent(true, root, mario)))
	assert.Zero(t, w.Writes())
}

func TestHandleEvent_DropsInvalidStoreKey(t *testing.T) {
	_, w, sw := setup(t)
	e := events.New(events.KindMovementAppended, mario)
	e.StoreKey = "personal:"
	require.NoError(t, sw.HandleEvent(context.Background(), e))
	assert.Zero(t, w.Writes())
}

func TestSyncAll_IncludesEveryStoreAndAdmin(t *testing.T) {
	ctx := context.Background()
	l, w, sw := setup(t)

	mustAppend(t, l, core.PersonalKey(mario), mario, 100)
	mustAppend(t, l, core.PersonalKey(core.MustIdentity("@luigi")), core.MustIdentity("@luigi"), 200)

	require.NoError(t, sw.SyncAll(ctx))
	assert.Equal(t, []string{"Estratto @luigi", "Estratto @mario", "Estratto admin"}, w.Tabs())

	synced, failed := sw.Stats()
	assert.Equal(t, int64(3), synced)
	assert.Zero(t, failed)
}

type failingWriter struct {
	mu    sync.Mutex
	fail  string
	calls []string
}

func (f *failingWriter) WriteDocument(_ context.Context, tab string, _ core.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tab)
	if tab == f.fail {
		return errors.New("quota exceeded")
	}
	return nil
}

func TestSyncAll_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.NewStores(memory.New()))
	fw := &failingWriter{fail: "Estratto admin"}
	sw := NewSyncWorker(l, fw)
	mustAppend(t, l, core.PersonalKey(mario), mario, 100)

	err := sw.SyncAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.ElementsMatch(t, []string{"Estratto admin", "Estratto @mario"}, fw.calls)

	synced, failed := sw.Stats()
	assert.Equal(t, int64(1), synced)
	assert.Equal(t, int64(1), failed)
}

func TestHandleEvent_WriteFailureIsRetried(t *testing.T) {
	l := ledger.New(ledger.NewStores(memory.New()))
	sw := NewSyncWorker(l, &failingWriter{fail: "Estratto @mario"})
	res := mustAppend(t, l, core.PersonalKey(mario), mario, 100)

	err := sw.HandleEvent(context.Background(), events.MovementEvent(events.KindMovementAppended, core.PersonalKey(mario), res.Movement, res.Balance))
	assert.Error(t, err, "a failed write must be reported so the message is requeued")
}

func TestRun_StopsOnCancel(t *testing.T) {
	_, w, sw := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return w.Writes() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
