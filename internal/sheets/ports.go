package sheets

import (
	"context"

	"totalx/internal/core"
)

// Ports for outbound document adapters.
type (
	// DocumentWriter replaces the content of a named tab with doc.
	DocumentWriter interface {
		WriteDocument(ctx context.Context, tab string, doc core.Document) error
	}
)

// TabName is the spreadsheet tab that mirrors key's estratto conto.
func TabName(key core.StoreKey) string {
	if key.IsAdmin() {
		return "Estratto admin"
	}
	return "Estratto " + key.Owner().String()
}
