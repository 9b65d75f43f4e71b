package commands

import (
	"context"
	"fmt"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/external/holidays"
	"github.com/wonny/demandcast/internal/external/weather"
	"github.com/wonny/demandcast/internal/features"
	"github.com/wonny/demandcast/internal/ingest"
	"github.com/wonny/demandcast/internal/notify"
	"github.com/wonny/demandcast/internal/pipeline"
	"github.com/wonny/demandcast/internal/store"
	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/database"
	"github.com/wonny/demandcast/pkg/httputil"
	"github.com/wonny/demandcast/pkg/logger"
	"github.com/wonny/demandcast/pkg/redis"
)

// app holds everything a command needs after bootstrap.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	orch     *pipeline.Orchestrator
	loader   *ingest.Loader
	notifier notify.Notifier

	closers []func()
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap loads config and wires the pipeline. The artifact store is
// Postgres when the database is enabled, in-memory otherwise; external data
// sources are attached only when enabled in config.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat, cfg.Env)

	a := &app{cfg: cfg, log: log}

	var artifacts contracts.ArtifactStore
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		pg := store.NewPostgres(db, log)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		artifacts = pg
		log.Info("Connected to database")
	} else {
		artifacts = store.NewMemory()
		log.Info("Using in-memory artifact store")
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	httpClient := httputil.New(log).WithRateLimit(5, 2)

	var holidaySource *holidays.Client
	if cfg.Holidays.Enabled {
		holidaySource = holidays.NewClient(cfg.Holidays, httpClient,
			redis.NewCache(rdb, "demandcast"), log)
	}
	var weatherSource *weather.Client
	if cfg.Weather.Enabled {
		weatherSource = weather.NewClient(cfg.Weather, httpClient,
			redis.NewCache(rdb, "demandcast"), log)
	}

	// Assign through locals so a disabled source stays a true nil interface.
	var hs features.HolidaySource
	if holidaySource != nil {
		hs = holidaySource
	}
	var ws features.WeatherSource
	if weatherSource != nil {
		ws = weatherSource
	}

	orch := pipeline.New(log, artifacts, hs, ws)
	if holidaySource != nil {
		orch.WithPrefetchers(holidaySource)
	}
	if weatherSource != nil {
		orch.WithPrefetchers(weatherSource)
	}

	a.orch = orch
	a.loader = ingest.NewLoader(log)
	a.notifier = notify.NewLogNotifier(log)
	return a, nil
}
