package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	coretypes "github.com/projecteru2/core/types"

	"github.com/projecteru2/acipull/utils"
)

// Config holds global acipull configuration.
type Config struct {
	// ImageRoot is the directory pulled images are staged and kept under.
	ImageRoot string `json:"image_root"`
	// MetaDiscoveryURL is the indirection endpoint queried when simple
	// discovery fails.
	MetaDiscoveryURL string `json:"meta_discovery_url"`
	// PullTimeoutSeconds bounds a single network fetch.
	PullTimeoutSeconds int `json:"pull_timeout_seconds"`
	// PoolSize bounds concurrent pulls for multi-image invocations.
	// Defaults to runtime.NumCPU() if zero.
	PoolSize int `json:"pool_size"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ImageRoot:          "/var/lib/machines",
		MetaDiscoveryURL:   "https://discovery.appc.example.com/v1/resolve",
		PullTimeoutSeconds: 1800,
		PoolSize:           runtime.NumCPU(),
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return conf, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if conf.PoolSize <= 0 {
		conf.PoolSize = runtime.NumCPU()
	}
	return conf, nil
}

// EnsureImageRoot creates the image root and its metadata directory.
func (c *Config) EnsureImageRoot() error {
	return utils.EnsureDirs(c.ImageRoot, c.metaDir())
}

// PullPath returns the content-id-derived staging base under the image
// root. The live staging snapshot is a randomized sibling of this path.
func (c *Config) PullPath(contentID string) string {
	return filepath.Join(c.ImageRoot, ".pull-"+contentID)
}

// LocalPath returns the persistent path for a requested local name.
func (c *Config) LocalPath(local string) string {
	return filepath.Join(c.ImageRoot, local)
}

// IndexFile returns the path of the local-image index.
func (c *Config) IndexFile() string {
	return filepath.Join(c.metaDir(), "index.json")
}

// IndexLock returns the path of the flock protecting the index.
func (c *Config) IndexLock() string {
	return filepath.Join(c.metaDir(), "index.lock")
}

func (c *Config) metaDir() string {
	return filepath.Join(c.ImageRoot, ".acipull")
}
