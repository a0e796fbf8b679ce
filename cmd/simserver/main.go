package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/handler"
	"github.com/l1jgo/simcore/internal/linking"
	gonet "github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/l1jgo/simcore/internal/scripting"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/system"
	"github.com/l1jgo/simcore/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              simcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m   chunked ECS · input replication server  \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := max(46-utf8.RuneCountInString(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	s := fmt.Sprint(value)
	dotsLen := max(42-utf8.RuneCountInString(label)-len(s), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), s)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// SIMCORE_PROFILE=cpu|mem writes a pprof profile on shutdown
	switch os.Getenv("SIMCORE_PROFILE") {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Optional PostgreSQL
	printSection("database")
	var (
		accounts    *persist.AccountRepo
		avatars     *persist.AvatarRepo
		desyncs     *persist.DesyncRepo
		accountDeps handler.AccountStore
		avatarDeps  handler.AvatarStore
	)
	if cfg.Database.DSN == "" {
		printOK("no dsn configured, persistence disabled")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", version)

		accounts = persist.NewAccountRepo(db)
		avatars = persist.NewAvatarRepo(db, 3)
		desyncs = persist.NewDesyncRepo(db)
		accountDeps, avatarDeps = accounts, avatars

		n, err := accounts.ResetOnline(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("reset online flags: %w", err)
		}
		printStat("stale online flags cleared", n)
	}
	fmt.Println()

	// 4. Entity store, links and rules
	printSection("simulation")
	reg, comps, err := sim.NewRegistry()
	if err != nil {
		return fmt.Errorf("component registry: %w", err)
	}
	ecsWorld, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(cfg.Store.ChunkSize))
	if err != nil {
		return fmt.Errorf("entity store: %w", err)
	}
	bus := event.NewBus()
	links := linking.NewContext()
	system.EmitDespawns(ecsWorld, links, bus)
	links.Attach(ecsWorld)

	luaEngine, err := scripting.NewEngine(cfg.Simulation.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()

	runner := coresys.NewRunner()
	simulator := sim.NewSimulator(ecsWorld, comps, links, luaEngine, sim.Settings{
		ProjectileTTL:   uint16(cfg.Simulation.ProjectileTTL),
		ProjectileSpeed: float32(cfg.Simulation.ProjectileSpeed),
		FireCooldown:    uint16(cfg.Simulation.FireCooldown),
	})
	simulator.OnFire = func(owner, projectile linking.NetID) {
		event.Emit(bus, event.ProjectileFired{Owner: owner, Projectile: projectile, Frame: runner.Frame()})
	}
	printStat("component types", reg.Len())
	printStat("chunk size", ecsWorld.Chunks().Size())
	printStat("missing input policy", cfg.Simulation.MissingInput)
	fmt.Println()

	worldState := world.NewState()

	// 5. Create packet handler registry and register handlers
	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:   cfg,
		Log:      log,
		World:    worldState,
		Sim:      simulator,
		Bus:      bus,
		Clock:    runner,
		Accounts: accountDeps,
		Avatars:  avatarDeps,
	}
	handler.RegisterAll(pktReg, deps)

	// 6. Create network server
	rateLimit := 0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InQueueSize:      cfg.Network.InQueueSize,
		OutQueueSize:     cfg.Network.OutQueueSize,
		PacketsPerSecond: rateLimit,
		ReadTimeout:      cfg.Network.ReadTimeout,
		WriteTimeout:     cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()
	if cfg.Network.WSBindAddress != "" {
		if err := netServer.ListenWebSocket(cfg.Network.WSBindAddress, cfg.Network.WSPath); err != nil {
			return fmt.Errorf("websocket listener: %w", err)
		}
	}

	// 7. Create systems and register with runner
	var checkpoints system.CheckpointStore
	var desyncStore system.DesyncStore
	if avatars != nil {
		checkpoints, desyncStore = avatars, desyncs
	}
	persistSys := system.NewPersistenceSystem(worldState, ecsWorld, runner, checkpoints, desyncStore, bus, log, cfg.Database.SaveInterval)
	var saver system.PlayerSaver
	if checkpoints != nil {
		saver = persistSys
	}
	store := gonet.NewSessionStore()

	runner.Register(system.NewInputSystem(netServer, pktReg, store, cfg.Network.MaxPacketsPerTick,
		worldState, simulator, bus, saver, accountDeps, log))
	runner.Register(system.NewEventSystem(bus))
	if cfg.Simulation.HotReload && cfg.Simulation.ScriptsDir != "" {
		watcher, err := scripting.NewWatcher(cfg.Simulation.ScriptsDir)
		if err != nil {
			return fmt.Errorf("script watcher: %w", err)
		}
		defer watcher.Close()
		runner.Register(system.NewScriptReloadSystem(watcher, luaEngine, log))
	}
	runner.Register(system.NewSimulationSystem(worldState, simulator, cfg.Simulation.MissingInput, cfg.Network.TickRate, log))
	runner.Register(system.NewProjectileSystem(simulator, cfg.Network.TickRate))
	runner.Register(system.NewOutputSystem(worldState, simulator, store, runner, cfg.Network.SnapshotInterval))
	runner.Register(system.NewDiagnosticsSystem(worldState, bus, ecsWorld.Len, cfg.Replication.StatsInterval, log))
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(ecsWorld, log))

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	if addr := netServer.WSAddr(); addr != nil {
		printReady(fmt.Sprintf("websocket on %s%s", addr.String(), cfg.Network.WSPath))
	}
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
			if times := runner.LastTick(); times.Total() > cfg.Network.TickRate {
				fields := []zap.Field{zap.Uint32("frame", runner.Frame()), zap.Duration("total", times.Total())}
				times.Each(func(p coresys.Phase, d time.Duration) { fields = append(fields, zap.Duration(p.String(), d)) })
				log.Warn("tick overrun", fields...)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			persistSys.SaveAllPlayers()
			netServer.Shutdown()
			opStats, unknown := pktReg.Stats()
			for _, st := range opStats {
				log.Info("packets", zap.String("opcode", packet.OpcodeName(st.Opcode)),
					zap.Uint64("handled", st.Handled), zap.Uint64("denied", st.Denied))
			}
			log.Info("server stopped", zap.Uint32("frame", runner.Frame()), zap.Uint64("unknown_packets", unknown))
			return nil
		}
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
