package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edutrack/progress-engine/config"
	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/application/eventhandler"
	"github.com/edutrack/progress-engine/internal/application/query"
	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/internal/infrastructure/messaging"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/edutrack/progress-engine/internal/infrastructure/persistence/sqlite"
	"github.com/edutrack/progress-engine/internal/infrastructure/scheduler"
	"github.com/edutrack/progress-engine/internal/interface/health"
	"github.com/edutrack/progress-engine/pkg/circuitbreaker"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app holds every dependency a command may need. It is built once per
// invocation and torn down by close.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	loc   *time.Location
	clock timeutil.Clock

	catalog     progress.CatalogRepository
	logs        progress.LogRepository
	assignments progress.AssignmentRepository
	alerts      alert.Repository
	prefs       preference.Repository
	cache       progress.MetricCache
	bus         *messaging.InMemoryEventBus

	// migrate applies pending schema changes and reports how many ran.
	migrate func(ctx context.Context) (int, error)

	// rollback reverts the newest migration and reports its version.
	rollback func(ctx context.Context) (int, error)

	closers []func()

	// pings back the readiness checks of long-running commands.
	pings map[string]health.CheckFunc

	// Use cases
	logProgress      *command.LogProgressHandler
	createAssignment *command.CreateAssignmentHandler
	checkAlert       *command.CheckAccuracyAlertHandler
	resolveAlert     *command.ResolveAlertHandler
	updatePrefs      *command.UpdatePreferencesHandler
	sweepAlerts      *command.SweepAlertsHandler
	progress         *query.ProgressQueries
	getAlerts        *query.GetAlertsHandler
	thresholds       *preference.ThresholdResolver
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{
		cfg:   cfg,
		log:   log,
		loc:   timeutil.LoadLocation(cfg.App.Timezone),
		clock: timeutil.SystemClock,
		pings: make(map[string]health.CheckFunc),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. METRIC CACHE
	// ─────────────────────────────────────────────────────────────────────────
	a.cache = a.openCache(ctx)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	a.bus = messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	eventLog := log.With(logger.Component("events"))
	if err := a.bus.SubscribeAll(func(e shared.Event) error {
		eventLog.Info("domain event",
			logger.String("type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
			logger.Time("occurred_at", e.OccurredAt()),
		)
		return nil
	}); err != nil {
		a.close()
		return nil, fmt.Errorf("subscribe event log: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	// ─────────────────────────────────────────────────────────────────────────
	// 4. USE CASES
	// ─────────────────────────────────────────────────────────────────────────
	invalidator := command.NewCacheInvalidator(a.cache, log)
	a.logProgress = command.NewLogProgressHandler(a.logs, a.assignments, a.catalog, invalidator, a.bus, a.clock, a.loc, log)
	a.createAssignment = command.NewCreateAssignmentHandler(a.assignments, a.catalog, invalidator, a.bus, a.clock, log)
	a.checkAlert = command.NewCheckAccuracyAlertHandler(a.alerts, a.bus, a.clock, log)
	a.resolveAlert = command.NewResolveAlertHandler(a.alerts, a.catalog, a.bus, a.clock, log)
	a.updatePrefs = command.NewUpdatePreferencesHandler(a.prefs, log)
	a.progress = query.NewProgressQueries(a.catalog, a.logs, a.assignments, a.cache, a.clock, a.loc, log)
	a.getAlerts = query.NewGetAlertsHandler(a.alerts, a.catalog)
	a.thresholds = preference.NewThresholdResolver(a.prefs, log)
	a.sweepAlerts = command.NewSweepAlertsHandler(a.alerts, a.progress, a.thresholds, a.checkAlert, log)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, a.cfg.Database.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.catalog = store.Catalog()
		a.logs = store.Logs()
		a.assignments = store.Assignments()
		a.alerts = store.Alerts()
		a.prefs = store.Preferences()
		a.pings["store"] = store.DB().PingContext
		// Open creates the schema.
		a.migrate = func(context.Context) (int, error) { return 0, nil }
		a.rollback = func(context.Context) (int, error) {
			return 0, shared.InvalidInput("cli", "migrate", "rollback needs the postgres store")
		}
		a.log.Info("using sqlite store", logger.String("path", a.cfg.Database.SQLitePath))

	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = a.cfg.Database.URL
		pgCfg.MaxConns = a.cfg.Database.MaxConns
		pgCfg.MinConns = a.cfg.Database.MinConns
		pgCfg.MaxRetries = a.cfg.Database.MaxRetries

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		a.catalog = postgres.NewCatalogRepository(conn)
		a.logs = postgres.NewLogRepository(conn)
		a.assignments = postgres.NewAssignmentRepository(conn)
		a.alerts = postgres.NewAlertRepository(conn)
		a.prefs = postgres.NewPreferenceRepository(conn)
		a.pings["store"] = conn.Ping
		migrator := postgres.NewMigrator(conn)
		a.migrate = migrator.Migrate
		a.rollback = migrator.Rollback
		a.log.Info("using postgres store")

	default:
		return fmt.Errorf("unsupported database driver %q", a.cfg.Database.Driver)
	}
	return nil
}

// openCache falls back to the in-process cache when Redis is unreachable.
// The engine is correct without a shared cache, only slower.
func (a *app) openCache(ctx context.Context) progress.MetricCache {
	mem := func() progress.MetricCache {
		return memory.NewMetricCache(memory.Config{
			TTL:        a.cfg.Cache.TTL,
			MaxEntries: a.cfg.Cache.MaxEntries,
		})
	}
	if a.cfg.Cache.Backend != config.CacheRedis {
		return mem()
	}

	rc := a.cfg.Redis
	client, err := redis.Connect(ctx, redis.Config{
		Host:         rc.Host,
		Port:         rc.Port,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MaxRetries:   1,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	if err != nil {
		a.log.Warn("redis unavailable, using in-process cache", logger.Err(err))
		return mem()
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.pings["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

	cacheLog := a.log.With(logger.Component("metric-cache"))
	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		cacheLog.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return redis.NewMetricCache(client, a.cfg.Cache.TTL, breaker, cacheLog)
}

// watchProgress subscribes the on-write alert check to progress events.
// Scopes follow the tenant's feature flags.
func (a *app) watchProgress(tenant string) error {
	flags := a.cfg.Features
	if flags == nil {
		flags = config.LoadFeatureFlags()
	}
	hc := eventhandler.DefaultProgressLoggedConfig()
	hc.CheckTopic = flags.IsEnabled(config.FeatureAlertsTopicScope, tenant)
	hc.CheckLesson = flags.IsEnabled(config.FeatureAlertsLessonScope, tenant)
	hc.CheckStudent = flags.IsEnabled(config.FeatureAlertsStudentScope, tenant)

	h := eventhandler.NewOnProgressLoggedHandler(a.catalog, a.assignments, a.progress,
		a.thresholds, a.checkAlert, a.log, hc)
	return a.bus.Subscribe(h.EventType(), h.Handle)
}

// healthChecker reports the store, the shared cache and the last run of the
// named scheduled job.
func (a *app) healthChecker(s *scheduler.Scheduler, jobName string) *health.Checker {
	c := health.NewChecker(a.cfg.App.Version)
	for name, ping := range a.pings {
		c.AddCheck(name, ping)
	}
	c.AddCheck(jobName, func(context.Context) error {
		info, err := s.Job(jobName)
		if err != nil {
			return err
		}
		if r := info.LastResult; r != nil && !r.Success {
			return r.Error
		}
		return nil
	})
	return c
}

// onWriteChecks reports whether the tenant opted into on-write alert checks.
func (a *app) onWriteChecks(tenant string) bool {
	return a.cfg.Features != nil && a.cfg.Features.IsEnabled(config.FeatureAlertsOnWrite, tenant)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// parseDay reads a YYYY-MM-DD flag as a day in the configured timezone, the
// way log dates and pace days are interpreted. An empty value yields the
// zero time, which the use cases read as "today".
func (a *app) parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(timeutil.DayLayout, s, a.loc)
	if err != nil {
		return time.Time{}, badDay(s)
	}
	return t, nil
}

// parseCalendarDay reads a YYYY-MM-DD flag as a bare calendar date.
// Assignment bounds are stored that way.
func parseCalendarDay(s string) (time.Time, error) {
	t, err := timeutil.ParseDay(s)
	if err != nil {
		return time.Time{}, badDay(s)
	}
	return t, nil
}

func badDay(s string) error {
	return shared.InvalidInput("cli", "parseDay", fmt.Sprintf("bad date %q, want %s", s, timeutil.DayLayout))
}

var errNoTenant = errors.New("--tenant is required")
