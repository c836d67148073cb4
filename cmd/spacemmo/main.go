package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/core/event"
	coresys "github.com/spacemmo/server/internal/core/system"
	"github.com/spacemmo/server/internal/data"
	"github.com/spacemmo/server/internal/handler"
	gonet "github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/persist"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/scripting"
	"github.com/spacemmo/server/internal/shard"
	"github.com/spacemmo/server/internal/system"
	"github.com/spacemmo/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SPACEMMO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// One config file serves all four shards of a host.
	if s := os.Getenv("SPACEMMO_SHARD"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("SPACEMMO_SHARD: %w", err)
		}
		cfg.Shard.ID = id
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log = log.With(zap.Int("shard", cfg.Shard.ID))

	report := newStartupReport(cfg.Server.Name, cfg.Shard.ID)

	// 3. Static data: shard topology
	report.section("data")
	topo := shard.DefaultTopology()
	if cfg.Shard.TopologyFile != "" {
		topo, err = data.LoadTopology(cfg.Shard.TopologyFile)
		if err != nil {
			return fmt.Errorf("load topology: %w", err)
		}
	}
	if cfg.Shard.ID >= topo.Size() {
		return fmt.Errorf("shard id %d outside topology of %d shards", cfg.Shard.ID, topo.Size())
	}
	report.stat("shards", topo.Size())
	report.stat("grid cells", cfg.World.Rows*cfg.World.Cols)

	// 4. Lua spawn hook
	var luaEngine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		luaEngine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		if luaEngine.HasSpawnHook() {
			report.ok("Lua spawn hook loaded")
		}
	}

	// 5. Optional combat ledger
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ledgerRepo *persist.LedgerRepo
	if cfg.Database.Enabled {
		report.section("database")
		dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			dbCancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		report.ok("PostgreSQL connected")

		version, err := db.RunMigrations(dbCtx)
		dbCancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		report.ok("ledger schema at version %d", version)
		ledgerRepo = persist.NewLedgerRepo(db)
	}

	// 6. World, bus and message handlers
	worldState := world.NewState(world.Config{
		Bounds:     world.Bounds{Width: cfg.World.Width, Height: cfg.World.Height},
		Rows:       cfg.World.Rows,
		Cols:       cfg.World.Cols,
		CrossSize1: cfg.AOI.CrossSize1,
		CrossSize2: cfg.AOI.CrossSize2,
		Kinematics: world.Kinematics{
			ShipSpeed:   cfg.World.ShipSpeed,
			RocketSpeed: cfg.World.RocketSpeed,
			HitExtent:   cfg.World.HitExtent,
		},
	})
	if luaEngine != nil {
		luaEngine.SetRand(worldState.Rand())
	}
	bus := event.NewBus()

	bindAddr, err := cfg.Network.ShardAddress(cfg.Shard.ID)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	netServer, err := gonet.NewServer(bindAddr, cfg.Network.Path, gonet.SessionOptions{
		InQueueSize:       cfg.Network.InQueueSize,
		OutQueueSize:      cfg.Network.OutQueueSize,
		MessagesPerSecond: cfg.Network.MessagesPerSecond,
		MessageBurst:      cfg.Network.MessageBurst,
		WriteTimeout:      cfg.Network.WriteTimeout,
		ReadTimeout:       cfg.Network.ReadTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.Serve()

	store := gonet.NewSessionStore()
	out := handler.NewDispatcher(worldState, store, log)
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Out:       out,
		Bus:       bus,
		Scripting: luaEngine,
		Shard:     cfg.Shard.ID,
	}
	registry := protocol.NewRegistry(log)
	handler.RegisterAll(registry, deps)

	// 7. Systems, in phase order
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, registry, store, deps, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewSimulationSystem(worldState, out, bus, topo, cfg.Shard.ID, log))
	runner.Register(system.NewAOIDiagSystem(worldState, store, out, cfg.AOI.DiagInterval))
	runner.Register(system.NewOutputSystem(store))

	var ledger *system.LedgerSystem
	if ledgerRepo != nil {
		ledger = system.NewLedgerSystem(bus, ledgerRepo, cfg.Shard.ID, cfg.Database.FlushInterval, log)
		ledger.Start(ctx)
		runner.Register(ledger)
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	period := cfg.World.TickPeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	report.section("ready")
	report.ready("listening on ws://%s%s", netServer.Addr().String(), cfg.Network.Path)
	report.ready("game loop started (tick: %s)", period)
	report.printStartup(os.Stdout)

	for {
		select {
		case <-ticker.C:
			if elapsed := runner.Tick(period); elapsed > period {
				log.Warn("slow tick",
					zap.Uint64("tick", runner.Ticks()),
					zap.Duration("elapsed", elapsed),
					zap.Duration("period", period))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			shutdown(netServer, store, log)
			// One tick reaps the closed sessions, the next dispatches their
			// leave events to the ledger.
			runner.Tick(period)
			runner.Tick(period)
			if ledger != nil {
				ledger.Close()
				logTopKillers(ledgerRepo, cfg.Shard.ID, log)
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// shutdown stops accepting and closes every session.
func shutdown(srv *gonet.Server, store *gonet.SessionStore, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("http shutdown", zap.Error(err))
	}
	store.CloseAll()
}

func logTopKillers(repo *persist.LedgerRepo, shardID int, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	top, err := repo.TopKillers(ctx, shardID, 5)
	if err != nil {
		log.Warn("ledger summary", zap.Error(err))
		return
	}
	for i, t := range top {
		log.Info("top killer", zap.Int("rank", i+1), zap.Uint64("ship", t.ShipID), zap.Int("kills", t.Kills))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
