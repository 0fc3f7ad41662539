package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/hordecore/server/internal/config"
	"github.com/hordecore/server/internal/data"
	gonet "github.com/hordecore/server/internal/net"
	"github.com/hordecore/server/internal/persist"
	"github.com/hordecore/server/internal/replay"
	"github.com/hordecore/server/internal/scripting"
	"github.com/hordecore/server/internal/sim"
	"github.com/hordecore/server/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             hordecore  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      horde survival simulation core       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	var str string
	switch v := value.(type) {
	case int, uint64:
		str = numbers.Sprintf("%d", v)
	default:
		str = fmt.Sprint(v)
	}
	dotsLen := max(42-len(label)-len(str), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), str)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

type services struct {
	cfg    *config.Config
	actors *data.ActorTable
	lua    *scripting.Engine
	runs   *persist.RunRepo // nil without a database
	feed   *gonet.Server    // nil without a feed address
	log    *zap.Logger
}

func run() error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Load data and rules
	printSection("data")
	actors, err := data.LoadActorTable(cfg.Data.Actors)
	if err != nil {
		return fmt.Errorf("load actor table: %w", err)
	}
	printStat("actor templates", actors.Count())
	printStat("hostile kinds", len(actors.Hostiles()))

	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()
	if lua.Has("before_damage") {
		printOK("lua damage rules loaded")
	}
	if lua.Has("calc_regen_amount") {
		printOK("lua regen rules loaded")
	}
	fmt.Println()

	svc := &services{cfg: cfg, actors: actors, lua: lua, log: log}

	// 4. Optional PostgreSQL run history
	if cfg.Database.DSN != "" {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()
		svc.runs = persist.NewRunRepo(db)
	}

	// 5. Optional overlay feed
	if cfg.Feed.BindAddress != "" {
		feed, err := gonet.NewServer(cfg.Feed.BindAddress, cfg.Feed.OutQueueSize, cfg.Feed.WriteTimeout, log)
		if err != nil {
			return fmt.Errorf("feed server: %w", err)
		}
		go feed.AcceptLoop()
		defer feed.Shutdown()
		svc.feed = feed
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("ready")
	if svc.feed != nil {
		printReady(fmt.Sprintf("feed listening on %s", svc.feed.Addr()))
	}
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Sim.TickRate))
	fmt.Println()

	for runNo := 1; ; runNo++ {
		sum, interrupted, err := svc.play(runNo, shutdownCh)
		if err != nil {
			return err
		}
		if interrupted || !sum.GameOver || !cfg.Sim.RestartOnGameOver {
			log.Info("server stopped")
			return nil
		}
	}
}

// play runs one simulation until game over, the tick limit or a shutdown
// signal. It reports whether a signal ended the run.
func (svc *services) play(runNo int, shutdownCh <-chan os.Signal) (sim.Summary, bool, error) {
	cfg, log := svc.cfg, svc.log.With(zap.Int("run", runNo))

	var sinks []system.FrameSink
	if svc.feed != nil {
		sinks = append(sinks, system.NewFeedSink(svc.feed))
	}

	s, err := sim.New(sim.Options{
		Config: cfg,
		Actors: svc.actors,
		Lua:    svc.lua,
		Sinks:  sinks,
		Log:    log,
	})
	if err != nil {
		return sim.Summary{}, false, err
	}

	// The replay header needs the seed, which the sim derives when unset.
	var rec *replay.Recorder
	if cfg.Replay.Path != "" {
		path := replayPath(cfg.Replay.Path, runNo)
		rec, err = replay.Create(path, replay.Meta{
			ServerName: cfg.Server.Name,
			Seed:       s.Seed(),
			TickRate:   cfg.Sim.TickRate,
			StartedAt:  time.Now(),
		})
		if err != nil {
			return sim.Summary{}, false, err
		}
		s.AttachSink(rec)
		log.Info("recording replay", zap.String("path", path))
	}

	ticker := time.NewTicker(cfg.Sim.TickRate)
	defer ticker.Stop()

	interrupted := false
loop:
	for {
		select {
		case <-ticker.C:
			s.Tick(cfg.Sim.TickRate)
			if s.Over() {
				log.Info("game over", zap.Uint64("tick", s.Clock().Tick))
				break loop
			}
			if cfg.Sim.MaxTicks > 0 && s.Clock().Tick >= cfg.Sim.MaxTicks {
				log.Info("tick limit reached", zap.Uint64("ticks", cfg.Sim.MaxTicks))
				break loop
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			interrupted = true
			break loop
		}
	}

	sum := s.Summary(time.Now())
	printSummary(runNo, sum)
	if rec != nil {
		if err := rec.Close(); err != nil {
			return sum, interrupted, err
		}
		log.Info("replay closed", zap.Uint64("frames", rec.Frames()))
	}
	svc.saveRun(sum, log)
	return sum, interrupted, nil
}

func (svc *services) saveRun(sum sim.Summary, log *zap.Logger) {
	if svc.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := svc.runs.SaveRun(ctx, persist.RunSummary{
		ServerName: svc.cfg.Server.Name,
		Seed:       sum.Seed,
		StartedAt:  sum.StartedAt,
		EndedAt:    sum.EndedAt,
		Ticks:      sum.Ticks,
		Spawned:    sum.Spawned,
		Swept:      sum.Swept,
		PeakLive:   sum.PeakLive,
		Applied:    sum.Applied,
		Killed:     sum.Killed,
		Damage:     sum.Damage,
		GameOver:   sum.GameOver,
		Rejections: sum.Rejections,
	})
	if err != nil {
		// The run already happened; losing its record is not fatal.
		log.Error("save run summary", zap.Error(err))
		return
	}
	log.Info("run saved", zap.String("id", id.String()))
}

func printSummary(runNo int, sum sim.Summary) {
	fmt.Println()
	printSection(fmt.Sprintf("run %d", runNo))
	printStat("ticks", sum.Ticks)
	printStat("simulated", sum.Simulated.Round(time.Millisecond))
	printStat("hostiles spawned", sum.Spawned)
	printStat("hostiles swept", sum.Swept)
	printStat("peak live", sum.PeakLive)
	printStat("damage applied", sum.Applied)
	printStat("kills", sum.Killed)
	for _, reason := range slices.Sorted(maps.Keys(sum.Rejections)) {
		printStat("rejected: "+reason, sum.Rejections[reason])
	}
	if sum.GameOver {
		printOK("game over")
	}
	fmt.Println()
}

// replayPath numbers every run after the first: replay.hcrp, replay-2.hcrp.
func replayPath(path string, runNo int) string {
	if runNo <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), runNo, ext)
}

func loadConfig() (*config.Config, error) {
	cfgPath := "config/hordecore.toml"
	if p := os.Getenv("HORDECORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) && os.Getenv("HORDECORE_CONFIG") == "" {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
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
