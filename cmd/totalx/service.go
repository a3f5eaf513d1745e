package main

import (
	"totalx/internal/admin"
	"totalx/internal/backend"
	"totalx/internal/cache"
	"totalx/internal/config"
	"totalx/internal/core"
	"totalx/internal/ledger"
	"totalx/internal/services"
)

// newLedgerService wires the command service of the API server. Summaries
// are cached only when no other process can write the stores; on a shared
// backend every command reloads the dynamic admins instead.
func newLedgerService(cfg *config.Config, bt backend.BackendType, res *backend.BackendResult, registry *admin.Registry) (*services.LedgerService, *cache.LRU[core.StoreKey, core.Summary]) {
	ledgerOpts := []ledger.Option{ledger.WithLocation(cfg.Location())}
	svcOpts := []services.Option{
		services.WithPublisher(res.Publisher),
		services.WithCurrency(cfg.Currency),
	}

	var summaries *cache.LRU[core.StoreKey, core.Summary]
	if bt.Shared() {
		svcOpts = append(svcOpts, services.WithAdminRefresh())
	} else {
		summaries = cache.NewLRU[core.StoreKey, core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		ledgerOpts = append(ledgerOpts, ledger.WithSummaryCache(summaries))
	}

	l := ledger.New(ledger.NewStores(res.Repository), ledgerOpts...)
	return services.NewLedgerService(l, registry, svcOpts...), summaries
}
