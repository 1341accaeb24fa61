package app

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/pgstore"
)

// LedgerDeps collects the infrastructure the ledger stack is built on.
type LedgerDeps struct {
	Config     *Config
	DB         pgstore.Querier
	Redis      redis.UniversalClient
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// LedgerStack is the wired ledger engine together with its store and cache.
type LedgerStack struct {
	Store   *pgstore.Store
	Engine  *ledger.Engine
	Cache   *ledger.Cache
	Service *ledger.Service
	Metrics *ledger.Metrics
}

// NewLedgerStack wires the PostgreSQL store, engine, Redis cache and service.
// A nil Redis client disables caching.
func NewLedgerStack(deps LedgerDeps) (*LedgerStack, error) {
	if deps.Config == nil {
		return nil, errors.New("app: ledger config required")
	}
	if deps.DB == nil {
		return nil, errors.New("app: ledger database required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "ledger"))

	metrics := ledger.NewMetrics(deps.Registerer)
	store := pgstore.New(deps.DB, pgstore.Options{
		Logger:     logger,
		Recorder:   metrics,
		ScopedOnly: deps.Config.LedgerScopedOnly,
	})
	engine, err := ledger.NewEngine(store.Sources(), ledger.Options{
		StudioPrefix:        deps.Config.LedgerStudioPrefix,
		Strict:              deps.Config.StrictInvariants(),
		SeedWindowedOpening: deps.Config.LedgerSeedWindowedOpening,
		Logger:              logger,
		Metrics:             metrics,
	})
	if err != nil {
		return nil, err
	}

	var cache *ledger.Cache
	if deps.Redis != nil && deps.Config.LedgerCacheTTL > 0 {
		cache = ledger.NewCache(deps.Redis, deps.Config.LedgerCacheTTL)
	}
	return &LedgerStack{
		Store:   store,
		Engine:  engine,
		Cache:   cache,
		Service: ledger.NewService(engine, cache, logger),
		Metrics: metrics,
	}, nil
}
