// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"yttitle/internal/logger"
	"yttitle/titlegen"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. YTTITLE_TIMEZONE.
	EnvPrefix = "YTTITLE"
	// FileName is the optional config file looked up in the working
	// directory and then in the config directory.
	FileName = "yttitle.toml"
	// AppDirName is the per-user directory holding titles, tokens and logs.
	AppDirName = "yt_title_updater"
)

// Config holds all application configuration.
type Config struct {
	// ConfigDir holds titles.txt, applied-titles.txt, history.log and credentials.
	ConfigDir string `mapstructure:"config_dir"`
	// Timezone is the IANA zone used for generated titles and log timestamps.
	Timezone string `mapstructure:"timezone"`
	// CheckInterval is the period between reconciliation cycles in watch mode.
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// ClientSecrets is the OAuth client secrets file (default <config_dir>/client_secrets.json).
	ClientSecrets string `mapstructure:"client_secrets"`
	// TokenFile caches the OAuth token (default <config_dir>/token.json).
	TokenFile string `mapstructure:"token_file"`
	// SeedTitle is written when the titles file does not exist yet.
	// Empty means the generated default title at that moment.
	SeedTitle string `mapstructure:"seed_title"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// ListenAddr is the control API address used by watch mode.
	ListenAddr string `mapstructure:"listen_addr"`

	// MaxRetries is the maximum number of retries for a failed API call.
	MaxRetries int `mapstructure:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries.
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries.
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1).
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// RequestsPerSecond throttles API calls (0 = unlimited).
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// BreakerThreshold is the number of consecutive API failures that opens the circuit.
	BreakerThreshold int `mapstructure:"breaker_threshold"`
	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// DefaultConfig returns configuration with safe defaults. ConfigDir is left
// empty and resolved by Load.
func DefaultConfig() *Config {
	return &Config{
		Timezone:          titlegen.DefaultTimezone,
		CheckInterval:     30 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
		ListenAddr:        "127.0.0.1:8787",
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		RequestsPerSecond: 2,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigDir overrides every other config_dir source (the --config-dir flag).
	ConfigDir string
	// ConfigFile is an explicit config file; it must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file (default ".env"); a missing file is ignored.
	EnvFile string
	// WorkDir is searched for FileName before the config dir (default ".").
	WorkDir string
}

// Load builds the configuration.
// Priority: flag > env vars > .env file > config file > defaults.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	setDefaults(v, def)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := applyDotenv(v, opts.EnvFile); err != nil {
		return nil, err
	}

	baseDir := opts.ConfigDir
	if baseDir == "" {
		baseDir = v.GetString("config_dir")
	}
	if baseDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	if err := readConfigFile(v, opts, baseDir); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch {
	case opts.ConfigDir != "":
		cfg.ConfigDir = opts.ConfigDir
	case cfg.ConfigDir == "":
		cfg.ConfigDir = baseDir
	}
	cfg.ConfigDir = expandHome(cfg.ConfigDir)
	if cfg.ClientSecrets == "" {
		cfg.ClientSecrets = filepath.Join(cfg.ConfigDir, "client_secrets.json")
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(cfg.ConfigDir, "token.json")
	}
	cfg.ClientSecrets = expandHome(cfg.ClientSecrets)
	cfg.TokenFile = expandHome(cfg.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv and Unmarshal see them.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("config_dir", c.ConfigDir)
	v.SetDefault("timezone", c.Timezone)
	v.SetDefault("check_interval", c.CheckInterval)
	v.SetDefault("client_secrets", c.ClientSecrets)
	v.SetDefault("token_file", c.TokenFile)
	v.SetDefault("seed_title", c.SeedTitle)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("listen_addr", c.ListenAddr)
	v.SetDefault("max_retries", c.MaxRetries)
	v.SetDefault("initial_backoff", c.InitialBackoff)
	v.SetDefault("max_backoff", c.MaxBackoff)
	v.SetDefault("backoff_multiplier", c.BackoffMultiplier)
	v.SetDefault("requests_per_second", c.RequestsPerSecond)
	v.SetDefault("breaker_threshold", c.BreakerThreshold)
	v.SetDefault("breaker_cooldown", c.BreakerCooldown)
}

// applyDotenv reads YTTITLE_* entries from a dotenv file. Real environment
// variables win, so an entry is only applied when its variable is unset.
func applyDotenv(v *viper.Viper, path string) error {
	if path == "" {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	prefix := EnvPrefix + "_"
	for name, value := range values {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(strings.ToLower(strings.TrimPrefix(name, prefix)), value)
	}
	return nil
}

func readConfigFile(v *viper.Viper, opts LoadOptions, baseDir string) error {
	v.SetConfigType("toml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	for _, dir := range []string{workDir, baseDir} {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir must be set")
	}
	if _, err := titlegen.New(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("log_format must be text or json")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("backoff_multiplier must be > 1.0")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker_threshold must be positive")
	}
	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker_cooldown must be positive")
	}
	return nil
}

// fileView is the TOML rendering of Config with human-readable durations.
type fileView struct {
	ConfigDir         string  `toml:"config_dir"`
	Timezone          string  `toml:"timezone"`
	CheckInterval     string  `toml:"check_interval"`
	ClientSecrets     string  `toml:"client_secrets"`
	TokenFile         string  `toml:"token_file"`
	SeedTitle         string  `toml:"seed_title"`
	LogLevel          string  `toml:"log_level"`
	LogFormat         string  `toml:"log_format"`
	ListenAddr        string  `toml:"listen_addr"`
	MaxRetries        int     `toml:"max_retries"`
	InitialBackoff    string  `toml:"initial_backoff"`
	MaxBackoff        string  `toml:"max_backoff"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BreakerThreshold  int     `toml:"breaker_threshold"`
	BreakerCooldown   string  `toml:"breaker_cooldown"`
}

// TOML renders the configuration in the config file format.
func (c *Config) TOML() ([]byte, error) {
	return toml.Marshal(fileView{
		ConfigDir:         c.ConfigDir,
		Timezone:          c.Timezone,
		CheckInterval:     c.CheckInterval.String(),
		ClientSecrets:     c.ClientSecrets,
		TokenFile:         c.TokenFile,
		SeedTitle:         c.SeedTitle,
		LogLevel:          c.LogLevel,
		LogFormat:         c.LogFormat,
		ListenAddr:        c.ListenAddr,
		MaxRetries:        c.MaxRetries,
		InitialBackoff:    c.InitialBackoff.String(),
		MaxBackoff:        c.MaxBackoff.String(),
		BackoffMultiplier: c.BackoffMultiplier,
		RequestsPerSecond: c.RequestsPerSecond,
		BreakerThreshold:  c.BreakerThreshold,
		BreakerCooldown:   c.BreakerCooldown.String(),
	})
}

// DefaultConfigDir returns the per-user application directory:
// %APPDATA%\yt_title_updater on Windows, ~/Documents/yt_title_updater on
// macOS and $XDG_CONFIG_HOME/yt_title_updater (or ~/.config) elsewhere.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return configDirFor(runtime.GOOS, os.Getenv, home), nil
}

func configDirFor(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "windows":
		if appData := getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName)
		}
		return filepath.Join(home, "AppData", "Roaming", AppDirName)
	case "darwin":
		return filepath.Join(home, "Documents", AppDirName)
	default:
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppDirName)
		}
		return filepath.Join(home, ".config", AppDirName)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
