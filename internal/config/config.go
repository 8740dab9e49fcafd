package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const appDir = "stockfin"

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Provider ProviderConfig `yaml:"provider"`
	Tickers  TickersConfig  `yaml:"tickers"`
	Store    StoreConfig    `yaml:"store"`
	Bus      BusConfig      `yaml:"bus"`
	Server   ServerConfig   `yaml:"server"`
	UI       UIConfig       `yaml:"ui"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console/json
}

type RefreshConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

func (c RefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

type ProviderConfig struct {
	ChartURL  string `yaml:"chart_url"`
	SearchURL string `yaml:"search_url"`
	UserAgent string `yaml:"user_agent"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type TickersConfig struct {
	// Path of the persisted ticker list. Empty means the per-user config dir.
	Path string `yaml:"path"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	// Empty disables the snapshot log.
	Path string `yaml:"path"`
}

type BusConfig struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Interface string `yaml:"interface"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type UIConfig struct {
	ActivateCommand []string `yaml:"activate_command"`
	FocusCommand    []string `yaml:"focus_command"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Refresh: RefreshConfig{
			IntervalSec: 60,
		},
		Provider: ProviderConfig{
			ChartURL:  "https://query1.finance.yahoo.com/v8/finance/chart/",
			SearchURL: "https://query2.finance.yahoo.com/v1/finance/search",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutMs: 10000,
		},
		Bus: BusConfig{
			Name:      "org.stockfin.Waybar",
			Path:      "/org/stockfin",
			Interface: "org.stockfin",
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8765},
	}
}

// Dir returns the per-user config directory of stockfin. Creating it is
// best effort.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	dir := filepath.Join(base, appDir)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Tickers.Path == "" {
		cfg.Tickers.Path = filepath.Join(Dir(), "tickers.json")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Refresh.IntervalSec <= 0 {
		return fmt.Errorf("invalid refresh.interval_sec: %d", c.Refresh.IntervalSec)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Bus.Name == "" || c.Bus.Path == "" || c.Bus.Interface == "" {
		return fmt.Errorf("bus name, path and interface are required")
	}
	if c.Provider.TimeoutMs <= 0 {
		c.Provider.TimeoutMs = 10000
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("STOCKFIN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STOCKFIN_REFRESH_INTERVAL_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid STOCKFIN_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.Refresh.IntervalSec = n
	}
	if v := os.Getenv("STOCKFIN_HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("invalid STOCKFIN_HTTP_PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	return nil
}
