// Package app assembles the server from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"graveward/internal/combat"
	"graveward/internal/config"
	"graveward/internal/deathstore"
	"graveward/internal/deathstore/boltstore"
	"graveward/internal/deathstore/sqlitestore"
	"graveward/internal/entity"
	"graveward/internal/loot"
	servernet "graveward/internal/net"
	"graveward/internal/observability"
	"graveward/internal/stats"
	"graveward/internal/telemetry"
	"graveward/internal/tick"
	"graveward/internal/world"
	"graveward/logging"
	loggingSinks "graveward/logging/sinks"
)

const (
	streamSinkName  = "stream"
	shutdownTimeout = 5 * time.Second
)

// Options overrides what New would otherwise build from the config.
type Options struct {
	// Logger replaces the zap logger built from the logging section.
	Logger *zap.Logger
	// Console is where the console event sink writes; stdout by default.
	Console io.Writer
}

// App owns every long-lived component of a running server.
type App struct {
	cfg    *config.Config
	zap    *zap.Logger
	logger telemetry.Logger

	counters *telemetry.Counters
	router   *logging.Router
	stream   *servernet.Stream
	catalog  *stats.CatalogStore
	store    loot.RecordStore
	closers  []func() error

	world   *world.World
	loot    *loot.Manager
	combat  *combat.Orchestrator
	clock   *tick.Clock
	sweeps  *latestTick
	handler http.Handler

	shutdownTracing func(context.Context) error
}

// New wires the server. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	zapLogger := opts.Logger
	if zapLogger == nil {
		built, err := telemetry.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return nil, err
		}
		zapLogger = built
	}
	a := &App{
		cfg:      cfg,
		zap:      zapLogger,
		logger:   telemetry.WrapZap(zapLogger),
		counters: &telemetry.Counters{},
		sweeps:   newLatestTick(),
	}
	if err := a.build(ctx, opts); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.cfg
	metrics := telemetry.WrapMetrics(a.counters)

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Observability.OTelEndpoint,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	a.shutdownTracing = shutdownTracing

	a.stream = servernet.NewStream(servernet.StreamConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         a.logger,
		Metrics:        metrics,
	})
	if err := a.buildRouter(opts.Console); err != nil {
		return err
	}
	publisher := logging.Publisher(a.router)

	a.catalog, err = stats.NewCatalogStore(cfg.Stats.CatalogPath, a.logger)
	if err != nil {
		return fmt.Errorf("load stats catalog: %w", err)
	}

	a.store, err = a.openStore()
	if err != nil {
		return err
	}

	var manager *loot.Manager
	vitals := combat.NewVitals(cfg.Combat.DamageMemoryTicks)
	a.world, err = world.New(cfg.WorldConfig(), world.Deps{
		Catalog: a.catalog,
		Vitals:  vitals,
		Respawns: world.RespawnListenerFunc(func(victim entity.ID) {
			manager.OnRespawn(victim)
		}),
		Publisher: publisher,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	manager, err = loot.NewManager(cfg.LootConfig(), loot.Deps{
		Store:     a.store,
		Inventory: a.world,
		Publisher: publisher,
		Logger:    a.logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	a.loot = manager

	guard := combat.NewGuard(cfg.GuardConfig(), combat.GuardDeps{
		Publisher: publisher,
		Logger:    a.logger,
		Metrics:   metrics,
		Cooldown:  combat.WeaponCooldowns(a.world),
	})
	var orchestrator *combat.Orchestrator
	currentTick := func() uint64 { return orchestrator.CurrentTick() }
	handlers := combat.NewHandlers().
		Register(entity.KindPlayer, &combat.PlayerHandler{Vitals: vitals, Players: a.world, CurrentTick: currentTick}).
		Register(entity.KindNPC, &combat.NPCHandler{Vitals: vitals, NPCs: a.world, CurrentTick: currentTick})
	orchestrator = combat.NewOrchestrator(cfg.CombatConfig(), combat.Deps{
		Stats:     a.world,
		Movement:  a.world,
		Handlers:  handlers,
		Guard:     guard,
		Deaths:    deathFanout{loot: manager, world: a.world},
		Publisher: publisher,
		Logger:    a.logger,
		Metrics:   metrics,
	})
	a.combat = orchestrator

	a.clock = tick.New(cfg.TickConfig(), tick.Deps{
		Logger:    a.logger,
		Metrics:   metrics,
		Publisher: publisher,
	})
	a.clock.Subscribe("combat", orchestrator.Tick)
	a.clock.Subscribe("respawn", func(ctx context.Context, tick uint64) error {
		a.world.RespawnDue(ctx, tick)
		return nil
	})
	a.clock.Subscribe("loot", func(_ context.Context, tick uint64) error {
		a.sweeps.offer(tick)
		return nil
	})

	a.handler = servernet.NewHTTPHandler(servernet.Deps{
		Combat:    orchestrator,
		Loot:      manager,
		Directory: a.world,
		Lifecycle: a.world,
		Ticks:     a.clock,
		Stream:    a.stream,
		Counters:  a.counters,
		Router:    a.router,
		Logger:    a.logger,
	}, servernet.HTTPHandlerConfig{EnablePprof: cfg.Observability.EnablePprof})

	recovered, err := manager.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover death records: %w", err)
	}
	a.logger.Printf("[app] recovered %d open death records from %s storage", recovered, cfg.Storage.Backend)

	for _, npc := range cfg.World.NPCs {
		pos := entity.Position{X: npc.X, Y: npc.Y, Plane: npc.Plane}
		if err := a.world.SpawnNPC(ctx, entity.ID(npc.ID), npc.Template, pos, 0); err != nil {
			return fmt.Errorf("spawn npc %d: %w", npc.ID, err)
		}
	}
	return nil
}

func (a *App) buildRouter(console io.Writer) error {
	if console == nil {
		console = os.Stdout
	}
	eventCfg := a.cfg.EventConfig()
	sinks := map[string]logging.Sink{
		"console":      loggingSinks.NewConsole(console),
		streamSinkName: a.stream,
	}
	if eventCfg.HasSink("json") {
		jsonSink, err := loggingSinks.OpenJSONFile(eventCfg.JSON.FilePath, eventCfg.JSON.FlushInterval)
		if err != nil {
			return err
		}
		sinks["json"] = jsonSink
	}
	if !eventCfg.HasSink(streamSinkName) {
		eventCfg.EnabledSinks = append(eventCfg.EnabledSinks, streamSinkName)
	}
	router, err := logging.NewRouter(eventCfg, logging.SystemClock{}, zap.NewStdLog(a.zap), sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	a.router = router
	return nil
}

func (a *App) openStore() (loot.RecordStore, error) {
	storage := a.cfg.Storage
	switch storage.Backend {
	case deathstore.BackendMemory:
		return loot.NewMemoryStore(), nil
	case deathstore.BackendBolt, deathstore.BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
	}
	if dir := filepath.Dir(storage.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	if storage.Backend == deathstore.BackendBolt {
		store, err := boltstore.Open(storage.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	store, err := sqlitestore.Open(storage.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// Handler exposes the HTTP surface.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) World() *world.World {
	return a.world
}

func (a *App) Loot() *loot.Manager {
	return a.loot
}

func (a *App) Combat() *combat.Orchestrator {
	return a.combat
}

func (a *App) Clock() *tick.Clock {
	return a.clock
}

// Run drives the simulation and serves HTTP until ctx is cancelled or a
// component fails. A halted clock is returned as CLOCK_HALTED.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: a.cfg.Server.BindAddress, Handler: a.handler}
	group.Go(func() error {
		a.logger.Printf("[app] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return a.clock.Run(ctx)
	})
	group.Go(func() error {
		a.sweepLoop(ctx)
		return nil
	})
	if a.cfg.Stats.Watch {
		group.Go(func() error {
			return a.catalog.Watch(ctx)
		})
	}

	err := group.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := a.Close(closeCtx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// sweepLoop runs loot sweeps off the tick goroutine. Ticks that arrive while
// a sweep is running collapse into the latest one.
func (a *App) sweepLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case current := <-a.sweeps.ch:
			if err := a.loot.Sweep(ctx, current); err != nil && ctx.Err() == nil {
				a.logger.Printf("[loot] sweep at tick %d failed: %v", current, err)
			}
		}
	}
}

// Close releases every component in reverse construction order. It is safe
// to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.loot != nil {
		errs = append(errs, a.loot.Close(ctx))
		a.loot = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.router != nil {
		errs = append(errs, a.router.Close(ctx))
		a.router = nil
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
		a.shutdownTracing = nil
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	return errors.Join(errs...)
}

// Run builds the server from cfg and runs it until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	a, err := New(ctx, cfg, Options{})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
