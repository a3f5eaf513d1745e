// Package worker mirrors ledger stores into spreadsheet tabs. It reacts to
// ledger events and periodically re-syncs every store to repair anything a
// lost event left behind.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"totalx/internal/core"
	"totalx/internal/events"
	"totalx/internal/ledger"
	"totalx/internal/log"
	"totalx/internal/sheets"
)

// defaultParallelism bounds concurrent tab writes during a full sync.
const defaultParallelism = 4

// SyncWorker handles synchronization of ledger stores to spreadsheet tabs.
type SyncWorker struct {
	ledger      *ledger.Ledger
	writer      sheets.DocumentWriter
	parallelism int
	logger      *log.Logger

	full singleflight.Group

	mu    sync.Mutex
	locks map[core.StoreKey]*sync.Mutex

	synced atomic.Int64
	failed atomic.Int64
}

// NewSyncWorker mirrors stores read through l into w. l must not carry a
// summary cache: mutations happen in another process.
func NewSyncWorker(l *ledger.Ledger, w sheets.DocumentWriter) *SyncWorker {
	return &SyncWorker{
		ledger:      l,
		writer:      w,
		parallelism: defaultParallelism,
		logger:      log.WithComponent(log.ComponentWorker),
		locks:       make(map[core.StoreKey]*sync.Mutex),
	}
}

// HandleEvent is the amqp.Handler of the worker. Events that do not change a
// store are acknowledged without work; a malformed store key is dropped
// because redelivery cannot fix it.
func (w *SyncWorker) HandleEvent(ctx context.Context, e events.Event) error {
	if !e.Kind.AffectsStore() {
		w.logger.DebugContext(ctx, "Ignoring event",
			log.FieldEventID, e.ID,
			log.FieldEventKind, string(e.Kind))
		return nil
	}
	key, err := e.Key()
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping event with invalid store key",
			log.FieldEventID, e.ID,
			log.FieldStoreKey, e.StoreKey,
			log.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventID, e.ID,
		log.FieldEventKind, string(e.Kind),
		log.FieldStoreKey, key.String())
	return w.SyncStore(ctx, key)
}

// SyncStore rewrites key's tab from the current log. Syncs of one store are
// serialized so an older snapshot never overwrites a newer one.
func (w *SyncWorker) SyncStore(ctx context.Context, key core.StoreKey) error {
	l := w.lock(key)
	l.Lock()
	defer l.Unlock()

	doc, err := w.ledger.Export(ctx, key)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("export %s: %w", key, err)
	}
	tab := sheets.TabName(key)
	if err := w.writer.WriteDocument(ctx, tab, doc); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("write tab %q: %w", tab, err)
	}
	w.synced.Add(1)

	w.logger.DebugContext(ctx, "Store mirrored",
		log.FieldStoreKey, key.String(),
		"tab", tab,
		"rows", len(doc.Rows))
	return nil
}

// SyncAll mirrors every store holding movements, plus the admin store.
// Overlapping calls share a single run.
func (w *SyncWorker) SyncAll(ctx context.Context) error {
	_, err, shared := w.full.Do("all", func() (any, error) {
		return nil, w.syncAll(ctx)
	})
	if shared {
		w.logger.DebugContext(ctx, "Joined in-flight full sync")
	}
	return err
}

func (w *SyncWorker) syncAll(ctx context.Context) error {
	keys, err := w.ledger.Keys(ctx)
	if err != nil {
		return err
	}
	keys = withAdminKey(keys)

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := w.SyncStore(gctx, key); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			// Keep syncing the other stores.
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Full sync completed",
		"stores", len(keys),
		"errors", len(errs))
	return errors.Join(errs...)
}

// Run performs a full sync at startup and then every interval until ctx ends.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.SyncAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SyncAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err)
			}
		}
	}
}

// Stats returns the number of successful and failed tab writes.
func (w *SyncWorker) Stats() (synced, failed int64) {
	return w.synced.Load(), w.failed.Load()
}

func (w *SyncWorker) lock(key core.StoreKey) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	return l
}

func withAdminKey(keys []core.StoreKey) []core.StoreKey {
	for _, k := range keys {
		if k.IsAdmin() {
			return keys
		}
	}
	return append([]core.StoreKey{core.AdminKey()}, keys...)
}
