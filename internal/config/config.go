// Package config loads npmharvest configuration from an optional TOML
// file, with environment overrides on top.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/lberndt/npmharvest/pkg/pipeline"
	"github.com/lberndt/npmharvest/pkg/registry"
)

// Config holds application configuration.
type Config struct {
	Registry Registry `toml:"registry"`
	Download Download `toml:"download"`
}

// Registry configures the scrape and download hosts.
type Registry struct {
	ListingURL string `toml:"listing_url"`
	TarballURL string `toml:"tarball_url"`
}

// Download configures the extraction stage.
type Download struct {
	Dir         string `toml:"dir"`
	Concurrency int    `toml:"concurrency"`
	PageSize    int    `toml:"page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: Registry{
			ListingURL: registry.DefaultListingURL,
			TarballURL: registry.DefaultRegistryURL,
		},
		Download: Download{
			Dir:         pipeline.DefaultDir,
			Concurrency: pipeline.DefaultConcurrency,
			PageSize:    pipeline.DefaultPageSize,
		},
	}
}

// DefaultPath returns the conventional config file location
// ($XDG_CONFIG_HOME/npmharvest/config.toml).
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "npmharvest", "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path (if
// it exists), and environment overrides, in that order. An empty path
// means [DefaultPath]; a missing file at the default location is not an
// error, but an explicitly passed path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NPMHARVEST_LISTING_URL"); v != "" {
		cfg.Registry.ListingURL = v
	}
	if v := os.Getenv("NPMHARVEST_REGISTRY_URL"); v != "" {
		cfg.Registry.TarballURL = v
	}
	if v := os.Getenv("NPMHARVEST_DIR"); v != "" {
		cfg.Download.Dir = v
	}
	if v := os.Getenv("NPMHARVEST_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Download.Concurrency = n
		}
	}
}
