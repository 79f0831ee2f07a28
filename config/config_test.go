package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// isolate points every lookup at fresh temp dirs.
func isolate(t *testing.T) LoadOptions {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix+"_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return LoadOptions{
		EnvFile: filepath.Join(t.TempDir(), "missing.env"),
		WorkDir: t.TempDir(),
	}
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfigDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q, want America/New_York", cfg.Timezone)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Errorf("CheckInterval = %v, want 30s", cfg.CheckInterval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if runtimeDir, _ := DefaultConfigDir(); cfg.ConfigDir != runtimeDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, runtimeDir)
	}
	if cfg.ClientSecrets != filepath.Join(cfg.ConfigDir, "client_secrets.json") {
		t.Errorf("ClientSecrets = %q", cfg.ClientSecrets)
	}
	if cfg.TokenFile != filepath.Join(cfg.ConfigDir, "token.json") {
		t.Errorf("TokenFile = %q", cfg.TokenFile)
	}
}

func TestLoad_FlagOverridesEverything(t *testing.T) {
	opts := isolate(t)
	t.Setenv("YTTITLE_CONFIG_DIR", "/from/env")
	opts.ConfigDir = t.TempDir()

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConfigDir != opts.ConfigDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, opts.ConfigDir)
	}
}

func TestLoad_Precedence(t *testing.T) {
	opts := isolate(t)
	dir := t.TempDir()
	opts.ConfigDir = dir

	file := "timezone = \"Europe/London\"\ncheck_interval = \"2m\"\nmax_retries = 7\nlisten_addr = \"127.0.0.1:9000\"\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("YTTITLE_CHECK_INTERVAL=45s\nYTTITLE_MAX_RETRIES=9\nOTHER=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts.EnvFile = envFile
	t.Setenv("YTTITLE_MAX_RETRIES", "2")

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timezone != "Europe/London" {
		t.Errorf("Timezone = %q, want file value", cfg.Timezone)
	}
	if cfg.CheckInterval != 45*time.Second {
		t.Errorf("CheckInterval = %v, want .env value 45s", cfg.CheckInterval)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want env value 2", cfg.MaxRetries)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q, want file value", cfg.ListenAddr)
	}
}

func TestLoad_WorkDirFileWins(t *testing.T) {
	opts := isolate(t)
	opts.ConfigDir = t.TempDir()
	os.WriteFile(filepath.Join(opts.ConfigDir, FileName), []byte("log_level = \"error\"\n"), 0o644)
	os.WriteFile(filepath.Join(opts.WorkDir, FileName), []byte("log_level = \"debug\"\n"), 0o644)

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "nope.toml")

	if _, err := Load(opts); err == nil {
		t.Error("Load() with missing explicit file error = nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	opts := isolate(t)
	opts.ConfigDir = t.TempDir()
	t.Setenv("YTTITLE_TIMEZONE", "Mars/Olympus")

	if _, err := Load(opts); err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Errorf("Load() error = %v, want timezone error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty config dir", func(c *Config) { c.ConfigDir = "" }},
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero backoff", func(c *Config) { c.InitialBackoff = 0 }},
		{"max below initial", func(c *Config) { c.MaxBackoff = time.Millisecond }},
		{"multiplier", func(c *Config) { c.BackoffMultiplier = 1 }},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }},
		{"zero threshold", func(c *Config) { c.BreakerThreshold = 0 }},
		{"zero cooldown", func(c *Config) { c.BreakerCooldown = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ConfigDir = "/cfg"
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestTOML_RoundTrips(t *testing.T) {
	opts := isolate(t)
	cfg := DefaultConfig()
	cfg.ConfigDir = t.TempDir()
	cfg.SeedTitle = "Live Stream"
	cfg.CheckInterval = 90 * time.Second

	data, err := cfg.TOML()
	if err != nil {
		t.Fatalf("TOML() error = %v", err)
	}
	var view map[string]any
	if err := toml.Unmarshal(data, &view); err != nil {
		t.Fatalf("output is not TOML: %v", err)
	}
	if view["check_interval"] != "1m30s" {
		t.Errorf("check_interval = %v, want 1m30s", view["check_interval"])
	}

	path := filepath.Join(t.TempDir(), "saved.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	opts.ConfigFile = path
	loaded, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() of rendered config error = %v", err)
	}
	if loaded.CheckInterval != cfg.CheckInterval || loaded.SeedTitle != cfg.SeedTitle || loaded.ConfigDir != cfg.ConfigDir {
		t.Errorf("round trip = %+v", loaded)
	}
}

func TestConfigDirFor(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want string
	}{
		{"windows appdata", "windows", map[string]string{"APPDATA": "C:/Users/u/AppData/Roaming"}, filepath.Join("C:/Users/u/AppData/Roaming", AppDirName)},
		{"darwin", "darwin", nil, filepath.Join("/home/u", "Documents", AppDirName)},
		{"linux xdg", "linux", map[string]string{"XDG_CONFIG_HOME": "/xdg"}, filepath.Join("/xdg", AppDirName)},
		{"linux default", "linux", nil, filepath.Join("/home/u", ".config", AppDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := configDirFor(tt.goos, env(tt.env), "/home/u"); got != tt.want {
				t.Errorf("configDirFor() = %q, want %q", got, tt.want)
			}
		})
	}
}
