package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totalx/internal/cache"
	"totalx/internal/core"
	"totalx/internal/storage"
	"totalx/internal/storage/memory"
)

var (
	mario = core.MustIdentity("@mario")
	root  = core.MustIdentity("@root")
)

func newTestLedger(t *testing.T, backend storage.MovementStore) *Ledger {
	t.Helper()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return New(NewStores(backend),
		WithSummaryCache(cache.NewLRU[core.StoreKey, core.Summary](16, time.Minute)),
		WithClock(func() time.Time { return clock }))
}

func amount(t *testing.T, raw string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(raw)
	require.NoError(t, err)
	return m
}

func TestLedger_AddSubtractUndoReset(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	key := core.PersonalKey(mario)

	res, err := l.Append(ctx, key, mario, amount(t, "100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", res.Balance.String())

	res, err = l.Append(ctx, key, mario, amount(t, "30").Neg())
	require.NoError(t, err)
	assert.Equal(t, "70.00", res.Balance.String())

	undo, err := l.UndoLast(ctx, key)
	require.NoError(t, err)
	assert.True(t, undo.Removed)
	assert.Equal(t, "-30.00", undo.Movement.Amount.String())
	assert.Equal(t, "100.00", undo.Balance.String())

	require.NoError(t, l.Reset(ctx, key))
	bal, err := l.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "0.00", bal.String())

	sum, err := l.Summary(ctx, key)
	require.NoError(t, err)
	assert.True(t, sum.IsEmpty())

	movements, err := l.Movements(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLedger_RoundsOnAppend(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	key := core.PersonalKey(mario)

	res, err := l.Append(ctx, key, mario, amount(t, "5.005"))
	require.NoError(t, err)
	assert.Equal(t, "5.01", res.Movement.Amount.String())
	assert.Equal(t, "5.01", res.Balance.String())
}

func TestLedger_UndoOnEmptyStoreIsNoOp(t *testing.T) {
	l := newTestLedger(t, memory.New())

	undo, err := l.UndoLast(context.Background(), core.AdminKey())
	require.NoError(t, err)
	assert.False(t, undo.Removed)
	assert.Equal(t, "0.00", undo.Balance.String())
}

func TestLedger_UndoRestoresBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	key := core.AdminKey()

	for _, raw := range []string{"12,34", "0.01", "999.99"} {
		_, err := l.Append(ctx, key, root, amount(t, raw))
		require.NoError(t, err)
	}
	before, err := l.Balance(ctx, key)
	require.NoError(t, err)

	for _, raw := range []string{"1.10", "-3.333", "7"} {
		a := amount(t, raw)
		res, err := l.Append(ctx, key, root, a)
		require.NoError(t, err)
		assert.True(t, res.Balance.Equal(before.Add(a)), "balance after append %s", raw)

		undo, err := l.UndoLast(ctx, key)
		require.NoError(t, err)
		assert.True(t, undo.Balance.Equal(before), "balance after undo %s", raw)
	}
}

func TestLedger_StoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())

	_, err := l.Append(ctx, core.AdminKey(), root, amount(t, "50"))
	require.NoError(t, err)
	_, err = l.Append(ctx, core.PersonalKey(mario), mario, amount(t, "7"))
	require.NoError(t, err)

	adminBal, err := l.Balance(ctx, core.AdminKey())
	require.NoError(t, err)
	marioBal, err := l.Balance(ctx, core.PersonalKey(mario))
	require.NoError(t, err)
	assert.Equal(t, "50.00", adminBal.String())
	assert.Equal(t, "7.00", marioBal.String())

	keys, err := l.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestLedger_Export(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	key := core.PersonalKey(mario)

	_, err := l.Append(ctx, key, mario, amount(t, "100"))
	require.NoError(t, err)
	_, err = l.Append(ctx, key, mario, amount(t, "40").Neg())
	require.NoError(t, err)

	doc, err := l.Export(ctx, key)
	require.NoError(t, err)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "Entrata", doc.Rows[0].Kind)
	assert.Equal(t, "Uscita", doc.Rows[1].Kind)
	require.Len(t, doc.Trailer, 3)
	assert.Equal(t, "60.00", doc.Trailer[2].Amount.String())
}

func TestLedger_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())

	_, err := l.Append(ctx, core.AdminKey(), root, core.Zero)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = l.Append(ctx, core.StoreKey{}, root, amount(t, "1"))
	assert.ErrorIs(t, err, core.ErrInvalidStoreKey)
}

func TestLedger_ConcurrentAppendsToAdminStore(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	key := core.AdminKey()

	const actors, perActor = 20, 25
	var wg sync.WaitGroup
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := core.MustIdentity(fmt.Sprintf("@actor%d", i))
			for j := 0; j < perActor; j++ {
				_, err := l.Append(ctx, key, who, core.MoneyFromCents(1))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	bal, err := l.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(actors*perActor), bal.Cents())

	movements, err := l.Movements(ctx, key)
	require.NoError(t, err)
	assert.Len(t, movements, actors*perActor)
}

// failingStore fails every call once armed.
type failingStore struct {
	*memory.Store
	fail bool
}

var errDisk = errors.New("disk full")

func (f *failingStore) Append(ctx context.Context, key core.StoreKey, m core.Movement) (core.Movement, error) {
	if f.fail {
		return core.Movement{}, errDisk
	}
	return f.Store.Append(ctx, key, m)
}

func (f *failingStore) Reset(ctx context.Context, key core.StoreKey) error {
	if f.fail {
		return errDisk
	}
	return f.Store.Reset(ctx, key)
}

func TestLedger_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	backend := &failingStore{Store: memory.New()}
	l := newTestLedger(t, backend)
	key := core.PersonalKey(mario)

	_, err := l.Append(ctx, key, mario, amount(t, "10"))
	require.NoError(t, err)

	backend.fail = true
	_, err = l.Append(ctx, key, mario, amount(t, "5"))
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, errDisk)

	err = l.Reset(ctx, key)
	assert.ErrorIs(t, err, core.ErrPersistence)

	backend.fail = false
	bal, err := l.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "10.00", bal.String())
}

func TestStores_OpenReturnsSameHandle(t *testing.T) {
	s := NewStores(memory.New())
	a, err := s.Open(core.AdminKey())
	require.NoError(t, err)
	b, err := s.Open(core.AdminKey())
	require.NoError(t, err)
	c, err := s.Open(core.PersonalKey(mario))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, core.PersonalKey(mario), c.Key())
}

func TestLedger_RendersTimestampsInLocation(t *testing.T) {
	ctx := context.Background()
	rome := time.FixedZone("CEST", 2*60*60)
	stamp := time.Date(2024, 7, 1, 22, 30, 0, 0, time.UTC)
	l := New(NewStores(memory.New()),
		WithClock(func() time.Time { return stamp }),
		WithLocation(rome))
	key := core.PersonalKey(mario)

	_, err := l.Append(ctx, key, mario, amount(t, "10"))
	require.NoError(t, err)

	sum, err := l.Summary(ctx, key)
	require.NoError(t, err)
	require.Len(t, sum.Credits, 1)
	assert.Equal(t, "2024-07-02 00:30:00", sum.Credits[0].Timestamp.Format(core.TimestampLayout))

	doc, err := l.Export(ctx, key)
	require.NoError(t, err)
	require.Len(t, doc.Rows, 1)
	assert.True(t, doc.Rows[0].Timestamp.Equal(stamp))
	assert.Equal(t, "2024-07-02 00:30:00", doc.Rows[0].Timestamp.Format(core.TimestampLayout))
}
