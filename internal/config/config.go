package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Channels  []string  `yaml:"channels"`
	Scrape    Scrape    `yaml:"scrape"`
	Output    Output    `yaml:"output"`
	Database  Database  `yaml:"database"`
	Transform Transform `yaml:"transform"`
	Enrich    Enrich    `yaml:"enrich"`
	Server    Server    `yaml:"server"`
}

type Scrape struct {
	PageSize       int    `yaml:"page_size"`
	Limit          int    `yaml:"limit"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Database struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Transform struct {
	Command []string `yaml:"command"`
}

type Enrich struct {
	DetectorCommand []string `yaml:"detector_command"`
}

type Server struct {
	Port            int `yaml:"port"`
	QueryRetries    int `yaml:"query_retries"`
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// ConfigDir returns the XDG config directory for telelake.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "telelake")
}

// DataDir returns the XDG data directory for telelake.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "telelake")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/telelake/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'telelake init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Scrape: Scrape{
			PageSize:       100,
			BaseURL:        "https://t.me",
			TimeoutSeconds: 15,
		},
		Database: Database{MaxOpenConns: 4},
		Server: Server{
			Port:            8000,
			QueryRetries:    3,
			CacheSize:       128,
			CacheTTLSeconds: 300,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetDatabasePath returns the effective SQLite path from config or the
// default location under the data directory.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.GetDataDir(), "telelake.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
