package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/plan"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// validConfig returns defaults completed with the fields that have none
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database.DSN = "POSDATA"
	cfg.API.BaseURL = "https://api.example.com"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Driver != "odbc" {
		t.Errorf("expected driver odbc, got %s", cfg.Database.Driver)
	}
	if cfg.Sync.BatchSize != 1000 {
		t.Errorf("expected batch_size 1000, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("expected api timeout 30s, got %v", cfg.API.Timeout)
	}
	if cfg.Logging.File != "sync.log" {
		t.Errorf("expected log file sync.log, got %s", cfg.Logging.File)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[database]
dsn = "POSDATA"
username = "sync"
password = "secret"

[api]
base_url = "https://pos-sync.example.com"
timeout = "45s"
payload_format = "envelope"

[api.headers]
X-Api-Key = "abc123"

[sync]
batch_size = 250

[retry]
max_retries = 5

[logging]
level = "debug"

[tasks.dine_bill]
window_days = 14

[tasks.acc_users]
enabled = false
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check overridden values
	if cfg.Database.Username != "sync" || cfg.Database.Password != "secret" {
		t.Errorf("credentials not loaded: %+v", cfg.Database)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("expected api timeout 45s, got %v", cfg.API.Timeout)
	}
	if cfg.API.Headers["X-Api-Key"] != "abc123" {
		t.Errorf("expected api key header, got %v", cfg.API.Headers)
	}
	if cfg.Sync.BatchSize != 250 {
		t.Errorf("expected batch_size 250, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", cfg.Retry.MaxRetries)
	}

	// Check default values still present
	if cfg.Database.Driver != "odbc" {
		t.Errorf("expected default driver odbc, got %s", cfg.Database.Driver)
	}
	if cfg.Retry.InitialDelay != time.Second {
		t.Errorf("expected default initial_delay 1s, got %v", cfg.Retry.InitialDelay)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tasks, err := cfg.Plan()
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("expected 5 enabled tasks, got %d", len(tasks))
	}
	if tasks[0].Name != plan.TaskItems {
		t.Errorf("expected first task %s, got %s", plan.TaskItems, tasks[0].Name)
	}
	if tasks[1].Window.Days != 14 {
		t.Errorf("expected 14 day window, got %d", tasks[1].Window.Days)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if !IsConfigError(err) {
		t.Errorf("expected config error for nonexistent file, got %v", err)
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := writeConfig(t, "[database\ndsn = ")
	_, err := LoadFromFile(path)
	if !IsConfigError(err) {
		t.Errorf("expected config error for malformed file, got %v", err)
	}
}

func TestLoadFromFile_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://api.example.com"
endpoint = "/api/sync/users"
`)
	_, err := LoadFromFile(path)
	if !IsConfigError(err) {
		t.Fatalf("expected config error for unknown key, got %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error for empty config path, got %v", err)
	}

	if cfg.Database.Driver != "odbc" {
		t.Errorf("expected default driver, got %s", cfg.Database.Driver)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDSN, "ENV_DSN")
	t.Setenv(EnvDBPassword, "env-secret")
	t.Setenv(EnvAPIURL, "https://env.example.com")

	path := writeConfig(t, `
[database]
dsn = "FILE_DSN"
password = "file-secret"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.DSN != "ENV_DSN" {
		t.Errorf("expected DSN from env, got %s", cfg.Database.DSN)
	}
	if cfg.Database.Password != "env-secret" {
		t.Errorf("expected password from env, got %s", cfg.Database.Password)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("expected api url from env, got %s", cfg.API.BaseURL)
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	disabled := false
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api url", func(c *Config) { c.API.BaseURL = "" }},
		{"malformed api url", func(c *Config) { c.API.BaseURL = "not a url" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"empty driver", func(c *Config) { c.Database.Driver = "" }},
		{"invalid driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"zero batch size", func(c *Config) { c.Sync.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.Sync.BatchSize = -5 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"unknown task override", func(c *Config) { c.Tasks = map[string]plan.Override{"dine_orders": {}} }},
		{"all tasks disabled", func(c *Config) {
			c.Tasks = map[string]plan.Override{}
			for _, task := range plan.Default() {
				c.Tasks[task.Name] = plan.Override{Enabled: &disabled}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsConfigError(err) {
				t.Errorf("expected *config.Error, got %T", err)
			}
		})
	}
}

func TestValidate_BatchSizeAtLeastOne(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.BatchSize = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected batch_size 1 to be valid, got %v", err)
	}
}
