package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is used when SIMCORE_CONFIG is unset.
const DefaultPath = "config/server.toml"

// EnvPath names the environment variable that overrides DefaultPath.
const EnvPath = "SIMCORE_CONFIG"

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Network     NetworkConfig     `toml:"network"`
	Store       StoreConfig       `toml:"store"`
	Replication ReplicationConfig `toml:"replication"`
	Rollback    RollbackConfig    `toml:"rollback"`
	Simulation  SimulationConfig  `toml:"simulation"`
	Database    DatabaseConfig    `toml:"database"`
	Accounts    AccountsConfig    `toml:"accounts"`
	Logging     LoggingConfig     `toml:"logging"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress       string        `toml:"bind_address"`
	WSBindAddress     string        `toml:"ws_bind_address"` // empty disables the WebSocket listener
	WSPath            string        `toml:"ws_path"`
	TickRate          time.Duration `toml:"tick_rate"`
	InQueueSize       int           `toml:"in_queue_size"`
	OutQueueSize      int           `toml:"out_queue_size"`
	MaxPacketsPerTick int           `toml:"max_packets_per_tick"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	SnapshotInterval  int           `toml:"snapshot_interval"` // ticks between state snapshots
}

type StoreConfig struct {
	ChunkSize int `toml:"chunk_size"` // bytes per chunk
}

type ReplicationConfig struct {
	MaxQueueDepth   int `toml:"max_queue_depth"`
	InputRedundancy int `toml:"input_redundancy"` // records resent per input packet
	StatsInterval   int `toml:"stats_interval"`   // ticks, 0 = never
}

type RollbackConfig struct {
	Window    int     `toml:"window"` // frames retained
	Tolerance float64 `toml:"tolerance"`
}

// Missing input policies.
const (
	MissingRepeat = "repeat"
	MissingIdle   = "idle"
)

type SimulationConfig struct {
	MissingInput    string  `toml:"missing_input"`
	ScriptsDir      string  `toml:"scripts_dir"` // empty uses the embedded rules
	HotReload       bool    `toml:"hot_reload"`
	ProjectileTTL   int     `toml:"projectile_ttl"`
	FireCooldown    int     `toml:"fire_cooldown"`
	ProjectileSpeed float64 `toml:"projectile_speed"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables persistence
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	SaveInterval    int           `toml:"save_interval"` // ticks between avatar checkpoints
}

type AccountsConfig struct {
	RequireAuth bool `toml:"require_auth"`
	AutoCreate  bool `toml:"auto_create"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled          bool `toml:"enabled"`
	PacketsPerSecond int  `toml:"packets_per_second"`
}

// Path returns the config path from the environment or DefaultPath.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads path over Default(). A missing file at DefaultPath yields the
// defaults; any other read error is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Network.TickRate <= 0 {
		return fmt.Errorf("network.tick_rate must be positive, got %s", c.Network.TickRate)
	}
	if c.Network.SnapshotInterval <= 0 {
		return fmt.Errorf("network.snapshot_interval must be positive, got %d", c.Network.SnapshotInterval)
	}
	if c.Replication.MaxQueueDepth <= 0 {
		return fmt.Errorf("replication.max_queue_depth must be positive, got %d", c.Replication.MaxQueueDepth)
	}
	if c.Replication.InputRedundancy <= 0 || c.Replication.InputRedundancy > 32 {
		return fmt.Errorf("replication.input_redundancy must be in 1..32, got %d", c.Replication.InputRedundancy)
	}
	if c.Rollback.Window <= 0 {
		return fmt.Errorf("rollback.window must be positive, got %d", c.Rollback.Window)
	}
	switch c.Simulation.MissingInput {
	case MissingRepeat, MissingIdle:
	default:
		return fmt.Errorf("simulation.missing_input must be %q or %q, got %q",
			MissingRepeat, MissingIdle, c.Simulation.MissingInput)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "simcore",
			ID:   1,
		},
		Network: NetworkConfig{
			BindAddress:       "0.0.0.0:53000",
			WSPath:            "/ws",
			TickRate:          50 * time.Millisecond,
			InQueueSize:       128,
			OutQueueSize:      256,
			MaxPacketsPerTick: 32,
			WriteTimeout:      10 * time.Second,
			ReadTimeout:       60 * time.Second,
			SnapshotInterval:  2,
		},
		Store: StoreConfig{
			ChunkSize: 16 * 1024,
		},
		Replication: ReplicationConfig{
			MaxQueueDepth:   64,
			InputRedundancy: 4,
			StatsInterval:   200,
		},
		Rollback: RollbackConfig{
			Window:    64,
			Tolerance: 0.01,
		},
		Simulation: SimulationConfig{
			MissingInput:    MissingRepeat,
			ProjectileTTL:   60,
			FireCooldown:    10,
			ProjectileSpeed: 40,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			SaveInterval:    600,
		},
		Accounts: AccountsConfig{
			AutoCreate: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			PacketsPerSecond: 120,
		},
	}
}
