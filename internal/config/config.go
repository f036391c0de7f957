// Package config loads the lab's YAML configuration, a .env file and
// environment overrides. Binaries translate it into explicit call parameters.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	Logging     Logging     `yaml:"logging"`
	Storage     Storage     `yaml:"storage"`
	Server      Server      `yaml:"server"`
	Engine      Engine      `yaml:"engine"`
	Search      Search      `yaml:"search"`
	WalkForward WalkForward `yaml:"walkforward"`
	MonteCarlo  MonteCarlo  `yaml:"montecarlo"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage selects where ledgers and results are persisted.
// Monte Carlo summaries go to ClickHouse when its DSN is set.
type Storage struct {
	Backend          string `yaml:"backend"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"`
	SQLitePath       string `yaml:"sqlite_path"`
	BarsDir          string `yaml:"bars_dir"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Engine holds settings shared by every run.
type Engine struct {
	Workers        int     `yaml:"workers"`
	CapitalBase    float64 `yaml:"capital_base"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
	Seed           uint64  `yaml:"seed"`
	Objective      string  `yaml:"objective"`
}

// Search holds parameter search defaults.
type Search struct {
	Method        string  `yaml:"method"`
	TrainFraction float64 `yaml:"train_fraction"`
	Iterations    int     `yaml:"iterations"`
	TopN          int     `yaml:"top_n"`
}

// WalkForward holds walk-forward defaults.
type WalkForward struct {
	TrainDays int  `yaml:"train_days"`
	TestDays  int  `yaml:"test_days"`
	Anchored  bool `yaml:"anchored"`
}

// MonteCarlo holds simulation defaults.
type MonteCarlo struct {
	Simulations  int       `yaml:"simulations"`
	Percentiles  []float64 `yaml:"percentiles"`
	InitialValue float64   `yaml:"initial_value"`
	KeepPaths    bool      `yaml:"keep_paths"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: "info", Format: "json"},
		Storage: Storage{
			Backend:          BackendMemory,
			PostgresMaxConns: 10,
			SQLitePath:       "lab.db",
			BarsDir:          "data/bars",
		},
		Server: Server{Host: "0.0.0.0", Port: 8080},
		Engine: Engine{
			Workers:        runtime.NumCPU(),
			CapitalBase:    100_000,
			RiskFreeRate:   0,
			PeriodsPerYear: 252,
			Seed:           1,
			Objective:      "sharpe",
		},
		Search: Search{
			Method:        "grid",
			TrainFraction: 0.7,
			Iterations:    50,
			TopN:          10,
		},
		WalkForward: WalkForward{TrainDays: 252, TestDays: 63},
		MonteCarlo: MonteCarlo{
			Simulations:  1000,
			Percentiles:  []float64{0.05, 0.5, 0.95},
			InitialValue: 100_000,
			KeepPaths:    true,
		},
	}
}

// Load starts from Default, overlays the YAML file at path (skipped when
// path is empty), loads .env without overriding the process environment and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LAB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LAB_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("BARS_DIR"); v != "" {
		cfg.Storage.BarsDir = v
	}
	if v := os.Getenv("LAB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LAB_WORKERS: %w", err)
		}
		cfg.Engine.Workers = n
	}
	if v := os.Getenv("LAB_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LAB_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	return nil
}

// Validate checks settings that no call site could recover from.
// Engine-level parameters are validated again by the packages that use them.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage backend sqlite requires sqlite_path")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.CapitalBase <= 0 {
		return fmt.Errorf("engine capital_base must be positive, got %v", c.Engine.CapitalBase)
	}
	if c.Engine.PeriodsPerYear <= 0 {
		return fmt.Errorf("engine periods_per_year must be positive, got %v", c.Engine.PeriodsPerYear)
	}
	return nil
}
