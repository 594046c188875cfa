package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("DB_CONN_STR", "")
	t.Setenv("API_TOKEN", "")
	t.Setenv("PLANNER_UNDO_WINDOW_HOURS", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Planning.UndoWindowHours)
	assert.Equal(t, 5*time.Minute, cfg.Planning.CacheTTL.Duration)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.UndoWindow())
}

func TestLoad_ParsesFile(t *testing.T) {
	t.Setenv("DB_CONN_STR", "")
	t.Setenv("API_TOKEN", "")
	t.Setenv("PLANNER_UNDO_WINDOW_HOURS", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[database]
driver = "postgres"
dsn = "host=localhost dbname=planner sslmode=disable"

[planning]
undo_window_hours = 168
base_currency = "USD"
cache_ttl = "90s"
attention_threshold = "500"
critical_threshold = "2500"

[automation]
enabled = true
check_interval = "15m"

[rates]
"EUR/USD" = "1.08"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 168, cfg.Planning.UndoWindowHours)
	assert.Equal(t, 90*time.Second, cfg.Planning.CacheTTL.Duration)
	assert.True(t, cfg.Automation.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Automation.CheckInterval.Duration)
	assert.Equal(t, "1.08", cfg.Rates["EUR/USD"])

	attention, critical := cfg.Thresholds()
	assert.Equal(t, "500", attention.String())
	assert.Equal(t, "2500", critical.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_CONN_STR", "host=db user=postgres dbname=planner sslmode=disable")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("PLANNER_UNDO_WINDOW_HOURS", "48")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "secret", cfg.Server.APIToken)
	assert.Equal(t, 48, cfg.Planning.UndoWindowHours)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "undo window 0 disables undo", mutate: func(c *Config) { c.Planning.UndoWindowHours = 0 }},
		{name: "undo window 12 is not offered", mutate: func(c *Config) { c.Planning.UndoWindowHours = 12 }, wantErr: "undo_window_hours"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "unsupported database driver"},
		{name: "critical below attention", mutate: func(c *Config) { c.Planning.CriticalThreshold = "10" }, wantErr: "critical_threshold"},
		{name: "bad rate", mutate: func(c *Config) { c.Rates["EUR/USD"] = "abc" }, wantErr: "invalid rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("DB_CONN_STR", "")
	t.Setenv("API_TOKEN", "")
	t.Setenv("PLANNER_UNDO_WINDOW_HOURS", "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Planning.UndoWindowHours = 48
	cfg.Rates["USD/EUR"] = "0.92"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48, loaded.Planning.UndoWindowHours)
	assert.Equal(t, "0.92", loaded.Rates["USD/EUR"])
}
