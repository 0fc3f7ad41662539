package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Sim        SimConfig        `toml:"sim"`
	Population PopulationConfig `toml:"population"`
	Contact    ContactConfig    `toml:"contact"`
	Gun        GunConfig        `toml:"gun"`
	Data       DataConfig       `toml:"data"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Database   DatabaseConfig   `toml:"database"`
	Feed       FeedConfig       `toml:"feed"`
	Replay     ReplayConfig     `toml:"replay"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type SimConfig struct {
	TickRate             time.Duration `toml:"tick_rate"`
	IndexRebuildInterval time.Duration `toml:"index_rebuild_interval"`
	Seed                 uint64        `toml:"seed"` // 0 = derive from start time
	QueryWorkers         int           `toml:"query_workers"`
	ParallelThreshold    int           `toml:"parallel_query_threshold"` // projectiles before fan-out
	RestartOnGameOver    bool          `toml:"restart_on_game_over"`
	MaxTicks             uint64        `toml:"max_ticks"` // 0 = unbounded
}

type PopulationConfig struct {
	MaxLive            int           `toml:"max_live"`
	SpawnRatePerSecond float64       `toml:"spawn_rate_per_second"`
	SpawnInterval      time.Duration `toml:"spawn_interval"`
	SpawnMinDistance   float32       `toml:"spawn_min_distance"`
	SpawnMaxDistance   float32       `toml:"spawn_max_distance"`
}

type ContactConfig struct {
	Interval time.Duration `toml:"interval"`
}

type GunConfig struct {
	Enabled      bool          `toml:"enabled"`
	Interval     time.Duration `toml:"interval"`
	PerShot      int           `toml:"per_shot"`
	Speed        float32       `toml:"speed"`
	Lifetime     time.Duration `toml:"lifetime"`
	Damage       float32       `toml:"damage"`
	HitRadius    float32       `toml:"hit_radius"` // 0 = each target's own hurt radius
	AimRadius    float32       `toml:"aim_radius"`
	Spread       float32       `toml:"spread"` // per-axis jitter added to the unit aim direction
	DespawnOnHit bool          `toml:"despawn_on_hit"`
}

type DataConfig struct {
	Actors string `toml:"actors"` // empty = built-in table
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty = run summaries are not stored
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type FeedConfig struct {
	BindAddress  string        `toml:"bind_address"` // empty = no overlay feed
	OutQueueSize int           `toml:"out_queue_size"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	MaxOutcomes  int           `toml:"max_outcomes"` // per frame
}

type ReplayConfig struct {
	Path string `toml:"path"` // empty = no recording
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration, used when no file exists.
func Default() *Config {
	cfg := defaults()
	cfg.Server.StartTime = time.Now().Unix()
	return cfg
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "hordecore",
		},
		Sim: SimConfig{
			TickRate:             time.Second / 60,
			IndexRebuildInterval: 100 * time.Millisecond,
			QueryWorkers:         4,
			ParallelThreshold:    256,
		},
		Population: PopulationConfig{
			MaxLive:            20000,
			SpawnRatePerSecond: 500,
			SpawnInterval:      time.Second,
			SpawnMinDistance:   400,
			SpawnMaxDistance:   1500,
		},
		Contact: ContactConfig{
			Interval: 500 * time.Millisecond,
		},
		Gun: GunConfig{
			Enabled:   true,
			Interval:  100 * time.Millisecond,
			PerShot:   10,
			Speed:     600,
			Lifetime:  500 * time.Millisecond,
			Damage:    20,
			AimRadius: 300,
			Spread:    0.5,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Feed: FeedConfig{
			OutQueueSize: 64,
			WriteTimeout: 5 * time.Second,
			MaxOutcomes:  256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects values the simulation cannot run with. Radii and
// damage amounts are checked here once so producers never emit invalid
// queries or contexts.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	finite := func(v float32) bool { return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0) }

	check(c.Sim.TickRate > 0, "sim.tick_rate must be > 0, got %v", c.Sim.TickRate)
	check(c.Sim.IndexRebuildInterval >= 0, "sim.index_rebuild_interval must be >= 0, got %v", c.Sim.IndexRebuildInterval)
	check(c.Sim.QueryWorkers >= 1, "sim.query_workers must be >= 1, got %d", c.Sim.QueryWorkers)
	check(c.Sim.ParallelThreshold >= 0, "sim.parallel_query_threshold must be >= 0, got %d", c.Sim.ParallelThreshold)

	p := c.Population
	check(p.MaxLive >= 0, "population.max_live must be >= 0, got %d", p.MaxLive)
	check(p.SpawnRatePerSecond > 0 && !math.IsInf(p.SpawnRatePerSecond, 0), "population.spawn_rate_per_second must be > 0, got %v", p.SpawnRatePerSecond)
	check(p.SpawnInterval > 0, "population.spawn_interval must be > 0, got %v", p.SpawnInterval)
	check(finite(p.SpawnMinDistance) && p.SpawnMinDistance >= 0, "population.spawn_min_distance must be >= 0, got %v", p.SpawnMinDistance)
	check(finite(p.SpawnMaxDistance) && p.SpawnMaxDistance >= p.SpawnMinDistance,
		"population.spawn_max_distance %v must be >= spawn_min_distance %v", p.SpawnMaxDistance, p.SpawnMinDistance)

	check(c.Contact.Interval > 0, "contact.interval must be > 0, got %v", c.Contact.Interval)

	g := c.Gun
	if g.Enabled {
		check(g.Interval > 0, "gun.interval must be > 0, got %v", g.Interval)
		check(g.PerShot >= 1, "gun.per_shot must be >= 1, got %d", g.PerShot)
		check(finite(g.Speed) && g.Speed > 0, "gun.speed must be > 0, got %v", g.Speed)
		check(g.Lifetime > 0, "gun.lifetime must be > 0, got %v", g.Lifetime)
		check(finite(g.Damage) && g.Damage > 0, "gun.damage must be > 0, got %v", g.Damage)
		check(finite(g.HitRadius) && g.HitRadius >= 0, "gun.hit_radius must be >= 0, got %v", g.HitRadius)
		check(finite(g.AimRadius) && g.AimRadius >= 0, "gun.aim_radius must be >= 0, got %v", g.AimRadius)
		check(finite(g.Spread) && g.Spread >= 0, "gun.spread must be >= 0, got %v", g.Spread)
	}

	if c.Feed.BindAddress != "" {
		check(c.Feed.OutQueueSize >= 1, "feed.out_queue_size must be >= 1, got %d", c.Feed.OutQueueSize)
		check(c.Feed.WriteTimeout > 0, "feed.write_timeout must be > 0, got %v", c.Feed.WriteTimeout)
	}
	check(c.Feed.MaxOutcomes >= 0, "feed.max_outcomes must be >= 0, got %d", c.Feed.MaxOutcomes)

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format must be json or console, got %q", ErrInvalid, c.Logging.Format))
	}
	return errors.Join(errs...)
}
