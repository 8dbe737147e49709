package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// appConfig is the resolved runtime configuration: every path the engine
// touches on disk, plus the optional metrics listener.
type appConfig struct {
	StoreDir     string
	FeedCacheDir string
	TrustDBPath  string
	KeyringDir   string
	MetricsAddr  string
}

type fileConfig struct {
	StoreDir     string `toml:"store_dir"`
	FeedCacheDir string `toml:"feed_cache_dir"`
	TrustDB      string `toml:"trust_db"`
	KeyringDir   string `toml:"keyring_dir"`
	MetricsAddr  string `toml:"metrics_addr"`
}

func defaultConfig() appConfig {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	root := filepath.Join(base, "spawnctl")
	return appConfig{
		StoreDir:     filepath.Join(root, "implementations"),
		FeedCacheDir: filepath.Join(root, "interfaces"),
		TrustDBPath:  filepath.Join(root, "trustdb.toml"),
		KeyringDir:   filepath.Join(root, "keyring"),
	}
}

// loadConfig layers path overrides from a TOML file over the defaults. A
// missing file is fine; a present-but-broken one is not.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("store_dir") {
		if v := strings.TrimSpace(raw.StoreDir); v != "" {
			cfg.StoreDir = v
		}
	}
	if meta.IsDefined("feed_cache_dir") {
		if v := strings.TrimSpace(raw.FeedCacheDir); v != "" {
			cfg.FeedCacheDir = v
		}
	}
	if meta.IsDefined("trust_db") {
		if v := strings.TrimSpace(raw.TrustDB); v != "" {
			cfg.TrustDBPath = v
		}
	}
	if meta.IsDefined("keyring_dir") {
		if v := strings.TrimSpace(raw.KeyringDir); v != "" {
			cfg.KeyringDir = v
		}
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	return cfg, nil
}
