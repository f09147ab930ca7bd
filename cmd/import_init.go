package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/company"
	"github.com/sells-group/import-cli/internal/importer"
	"github.com/sells-group/import-cli/internal/store"
	"github.com/sells-group/import-cli/pkg/enrich"
)

// importEnv holds the initialized store and import pipeline used by the
// import/serve/jobs commands.
type importEnv struct {
	Store  store.Store
	Orch   *importer.Orchestrator
	Runner *importer.Runner
}

// Close releases resources held by the import environment.
func (ie *importEnv) Close() {
	if ie.Store != nil {
		_ = ie.Store.Close()
	}
}

// initImport validates config for the given mode, opens the store, runs
// migrations, and builds the import pipeline. Callers should defer
// env.Close().
func initImport(ctx context.Context, mode string) (*importEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	// Enrichment is optional; without a key the resolver and engine skip
	// those steps.
	var enricher enrich.Client
	if cfg.Enrich.Key != "" {
		enricher = enrich.NewClient(cfg.Enrich.BaseURL, cfg.Enrich.Key,
			enrich.WithRateLimit(cfg.Enrich.RequestsPerSec),
			enrich.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
			}),
		)
		zap.L().Info("enrichment enabled", zap.String("base_url", cfg.Enrich.BaseURL))
	} else {
		zap.L().Debug("IMPORTCLI_ENRICH_KEY not set, enrichment disabled")
	}

	resolver := company.NewResolver(st, enricher)
	engine := importer.NewEngine(st, resolver, enricher, importer.EngineConfig{
		ChunkSize:       cfg.Import.ChunkSize,
		LookupChunkSize: cfg.Import.LookupChunkSize,
	})
	orch := importer.NewOrchestrator(st, engine, cfg.Import.BatchSize)
	runner := importer.NewRunner(st, orch, cfg.Import.MaxConcurrentJobs)

	return &importEnv{Store: st, Orch: orch, Runner: runner}, nil
}
