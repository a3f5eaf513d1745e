// Package ledger derives balances, summaries and export documents from the
// movement stores and applies the append, undo and reset transitions.
//
// Every operation on a store runs under that store's lock, so concurrent
// writers to the same store (most notably the shared admin pool) are
// serialized while different stores proceed in parallel.
package ledger

import (
	"context"
	"fmt"
	"time"

	"totalx/internal/cache"
	"totalx/internal/core"
	"totalx/internal/log"
)

// AppendResult is the outcome of a successful append.
type AppendResult struct {
	Movement core.Movement
	Balance  core.Money
}

// UndoResult is the outcome of an undo. Removed is false when the store was
// already empty; that is not an error.
type UndoResult struct {
	Movement core.Movement
	Removed  bool
	Balance  core.Money
}

type Ledger struct {
	stores    *Stores
	summaries cache.Cache[core.StoreKey, core.Summary]
	now       func() time.Time
	loc       *time.Location
	logger    *log.Logger
}

type Option func(*Ledger)

// WithSummaryCache memoizes summaries per store until the next mutation.
func WithSummaryCache(c cache.Cache[core.StoreKey, core.Summary]) Option {
	return func(l *Ledger) { l.summaries = c }
}

// WithClock replaces time.Now for movement timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation renders movement timestamps in loc. Backends store UTC.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

func New(stores *Stores, opts ...Option) *Ledger {
	l := &Ledger{
		stores: stores,
		now:    time.Now,
		logger: log.WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records amount for principal at the end of key's log and returns
// the stored movement with the new balance.
func (l *Ledger) Append(ctx context.Context, key core.StoreKey, principal core.Identity, amount core.Money) (AppendResult, error) {
	m := core.Movement{Principal: principal, Amount: amount, Timestamp: l.now()}
	if err := m.Validate(); err != nil {
		return AppendResult{}, err
	}

	h, err := l.stores.Open(key)
	if err != nil {
		return AppendResult{}, err
	}
	h.Lock()
	defer h.Unlock()

	saved, err := h.backend.Append(ctx, key, m)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: append movement: %w", core.ErrPersistence, err)
	}
	l.invalidate(key)

	sum, err := l.summaryLocked(ctx, key)
	if err != nil {
		return AppendResult{}, err
	}

	l.logger.DebugContext(ctx, "Movement appended",
		log.FieldStoreKey, key.String(),
		log.FieldPrincipal, principal.String(),
		log.FieldAmount, amount.String(),
		log.FieldBalance, sum.Balance.String())

	return AppendResult{Movement: l.localize(saved), Balance: sum.Balance}, nil
}

// Balance is the sum of every movement of key; 0.00 for an empty store.
func (l *Ledger) Balance(ctx context.Context, key core.StoreKey) (core.Money, error) {
	sum, err := l.Summary(ctx, key)
	if err != nil {
		return core.Zero, err
	}
	return sum.Balance, nil
}

func (l *Ledger) Summary(ctx context.Context, key core.StoreKey) (core.Summary, error) {
	h, err := l.stores.Open(key)
	if err != nil {
		return core.Summary{}, err
	}
	h.Lock()
	defer h.Unlock()
	return l.summaryLocked(ctx, key)
}

// Export projects key's movements into a document for the export writers.
func (l *Ledger) Export(ctx context.Context, key core.StoreKey) (core.Document, error) {
	movements, err := l.Movements(ctx, key)
	if err != nil {
		return core.Document{}, err
	}
	return core.BuildDocument(movements), nil
}

// Movements returns key's log in insertion order.
func (l *Ledger) Movements(ctx context.Context, key core.StoreKey) ([]core.Movement, error) {
	h, err := l.stores.Open(key)
	if err != nil {
		return nil, err
	}
	h.Lock()
	defer h.Unlock()

	movements, err := h.backend.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read movements: %w", core.ErrPersistence, err)
	}
	return l.localizeAll(movements), nil
}

// UndoLast removes the most recent movement of key.
func (l *Ledger) UndoLast(ctx context.Context, key core.StoreKey) (UndoResult, error) {
	h, err := l.stores.Open(key)
	if err != nil {
		return UndoResult{}, err
	}
	h.Lock()
	defer h.Unlock()

	m, removed, err := h.backend.UndoLast(ctx, key)
	if err != nil {
		return UndoResult{}, fmt.Errorf("%w: undo movement: %w", core.ErrPersistence, err)
	}
	if removed {
		l.invalidate(key)
	}

	sum, err := l.summaryLocked(ctx, key)
	if err != nil {
		return UndoResult{}, err
	}
	return UndoResult{Movement: l.localize(m), Removed: removed, Balance: sum.Balance}, nil
}

// Reset discards every movement of key. The store reads as empty afterwards.
func (l *Ledger) Reset(ctx context.Context, key core.StoreKey) error {
	h, err := l.stores.Open(key)
	if err != nil {
		return err
	}
	h.Lock()
	defer h.Unlock()

	err = h.backend.Reset(ctx, key)
	// A failed reset may still have been partially applied.
	l.invalidate(key)
	if err != nil {
		return fmt.Errorf("%w: reset store: %w", core.ErrPersistence, err)
	}

	l.logger.InfoContext(ctx, "Store reset", log.FieldStoreKey, key.String())
	return nil
}

// Keys lists the stores that currently hold movements.
func (l *Ledger) Keys(ctx context.Context) ([]core.StoreKey, error) {
	keys, err := l.stores.Backend().Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list stores: %w", core.ErrPersistence, err)
	}
	return keys, nil
}

// summaryLocked must be called with key's handle locked.
func (l *Ledger) summaryLocked(ctx context.Context, key core.StoreKey) (core.Summary, error) {
	if l.summaries != nil {
		if sum, ok := l.summaries.Get(key); ok {
			return sum, nil
		}
	}
	h, err := l.stores.Open(key)
	if err != nil {
		return core.Summary{}, err
	}
	movements, err := h.backend.ReadAll(ctx, key)
	if err != nil {
		return core.Summary{}, fmt.Errorf("%w: read movements: %w", core.ErrPersistence, err)
	}
	sum := core.Summarize(l.localizeAll(movements))
	if l.summaries != nil {
		l.summaries.Set(key, sum)
	}
	return sum, nil
}

func (l *Ledger) localize(m core.Movement) core.Movement {
	if l.loc != nil && !m.Timestamp.IsZero() {
		m.Timestamp = m.Timestamp.In(l.loc)
	}
	return m
}

func (l *Ledger) localizeAll(movements []core.Movement) []core.Movement {
	if l.loc == nil {
		return movements
	}
	out := make([]core.Movement, len(movements))
	for i, m := range movements {
		out[i] = l.localize(m)
	}
	return out
}

func (l *Ledger) invalidate(key core.StoreKey) {
	if l.summaries != nil {
		l.summaries.Delete(key)
	}
}
