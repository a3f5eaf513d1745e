// Package memory is an in-process DocumentWriter, used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"totalx/internal/core"
	ports "totalx/internal/sheets"
)

type Writer struct {
	mu     sync.Mutex
	tabs   map[string]core.Document
	writes int
}

var _ ports.DocumentWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{tabs: make(map[string]core.Document)}
}

func (w *Writer) WriteDocument(_ context.Context, tab string, doc core.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tabs[tab] = doc
	w.writes++
	return nil
}

// Document returns the last document written to tab.
func (w *Writer) Document(tab string) (core.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.tabs[tab]
	return doc, ok
}

// Tabs lists the written tabs in name order.
func (w *Writer) Tabs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tabs))
	for t := range w.tabs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Writes counts every WriteDocument call.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
