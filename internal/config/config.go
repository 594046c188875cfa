package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Config holds all planner configuration
type Config struct {
	Server     ServerConfig      `toml:"server"`
	Database   DatabaseConfig    `toml:"database"`
	Planning   PlanningConfig    `toml:"planning"`
	Automation AutomationConfig  `toml:"automation"`
	Log        LogConfig         `toml:"log"`
	Rates      map[string]string `toml:"rates"` // "EUR/USD" = "1.08"
}

// ServerConfig holds the gRPC listener settings
type ServerConfig struct {
	Addr     string `toml:"addr"`
	APIToken string `toml:"api_token,omitempty"`
}

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "postgres" or "sqlite"
	DSN    string `toml:"dsn"`
}

// PlanningConfig holds calculation and lifecycle settings
type PlanningConfig struct {
	UndoWindowHours    int      `toml:"undo_window_hours"`
	BaseCurrency       string   `toml:"base_currency"`
	CacheTTL           Duration `toml:"cache_ttl"`
	AttentionThreshold string   `toml:"attention_threshold"`
	CriticalThreshold  string   `toml:"critical_threshold"`
}

// AutomationConfig controls the daily start/complete scheduler
type AutomationConfig struct {
	Enabled       bool     `toml:"enabled"`
	CheckInterval Duration `toml:"check_interval"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `toml:"level"`
	Dev   bool   `toml:"dev"`
	File  string `toml:"file,omitempty"`
}

// Duration wraps time.Duration so it can be written as "5m" in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// AllowedUndoWindows lists the undo grace periods users can pick, in hours
var AllowedUndoWindows = []int{0, 24, 48, 168}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(DataDir(), "planner.db"),
		},
		Planning: PlanningConfig{
			UndoWindowHours:    24,
			BaseCurrency:       "EUR",
			CacheTTL:           Duration{5 * time.Minute},
			AttentionThreshold: "1000",
			CriticalThreshold:  "5000",
		},
		Automation: AutomationConfig{
			Enabled:       false,
			CheckInterval: Duration{time.Hour},
		},
		Log: LogConfig{
			Level: "info",
		},
		Rates: map[string]string{},
	}
}

// ConfigDir returns the XDG-compliant config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wealthflow-planner")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "wealthflow-planner")
}

// DataDir returns the XDG-compliant data directory
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "wealthflow-planner")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "wealthflow-planner")
}

// ConfigPath returns the default path of the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path (ConfigPath when empty), returning defaults if it
// doesn't exist, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnv lets the container environment win over the file
func applyEnv(cfg *Config) error {
	if dsn := os.Getenv("DB_CONN_STR"); dsn != "" {
		cfg.Database.DSN = dsn
		if driver := os.Getenv("DB_DRIVER"); driver != "" {
			cfg.Database.Driver = driver
		} else {
			cfg.Database.Driver = "postgres"
		}
	}
	if token := os.Getenv("API_TOKEN"); token != "" {
		cfg.Server.APIToken = token
	}
	if hours := os.Getenv("PLANNER_UNDO_WINDOW_HOURS"); hours != "" {
		parsed, err := strconv.Atoi(hours)
		if err != nil {
			return fmt.Errorf("invalid PLANNER_UNDO_WINDOW_HOURS: %w", err)
		}
		cfg.Planning.UndoWindowHours = parsed
	}
	return nil
}

// Validate checks values that have a closed set of legal options
func (c Config) Validate() error {
	validWindow := false
	for _, h := range AllowedUndoWindows {
		if c.Planning.UndoWindowHours == h {
			validWindow = true
			break
		}
	}
	if !validWindow {
		return fmt.Errorf("undo_window_hours must be one of %v, got %d", AllowedUndoWindows, c.Planning.UndoWindowHours)
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn cannot be empty")
	}
	if c.Planning.BaseCurrency == "" {
		return errors.New("base_currency cannot be empty")
	}

	attention, err := decimal.NewFromString(c.Planning.AttentionThreshold)
	if err != nil {
		return fmt.Errorf("invalid attention_threshold: %w", err)
	}
	critical, err := decimal.NewFromString(c.Planning.CriticalThreshold)
	if err != nil {
		return fmt.Errorf("invalid critical_threshold: %w", err)
	}
	if critical.LessThan(attention) {
		return errors.New("critical_threshold must not be below attention_threshold")
	}

	for pair, rate := range c.Rates {
		if _, err := decimal.NewFromString(rate); err != nil {
			return fmt.Errorf("invalid rate for %s: %w", pair, err)
		}
	}

	return nil
}

// UndoWindow returns the undo grace period as a duration
func (c Config) UndoWindow() time.Duration {
	return time.Duration(c.Planning.UndoWindowHours) * time.Hour
}

// Thresholds returns the parsed attention and critical thresholds.
// Validate must have succeeded first.
func (c Config) Thresholds() (attention, critical decimal.Decimal) {
	attention, _ = decimal.NewFromString(c.Planning.AttentionThreshold)
	critical, _ = decimal.NewFromString(c.Planning.CriticalThreshold)
	return attention, critical
}

// Save writes the config to path
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
