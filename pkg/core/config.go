// pkg/core/config.go
package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds bundlekit configuration
type Config struct {
	// Prefix is the install prefix; components live under Prefix/install
	Prefix string `yaml:"prefix"`

	// CachePath holds downloads and unpacked work trees
	CachePath string `yaml:"cache_path"`

	// Manifest is an optional component table replacing the embedded one
	Manifest string `yaml:"manifest"`

	// ParallelBuild lets make use every CPU. Off by default because some
	// toolkits do not have a build graph that is safe to run in parallel.
	ParallelBuild bool `yaml:"parallel_build"`

	// Make is the make program used by compile components
	Make string `yaml:"make"`

	// Ant is the ant executable exported to builds as ANT_FOUND. Looked up in PATH when empty.
	Ant string `yaml:"ant"`

	// JVMComponent names the component exported to later builds as JAVA_HOME
	JVMComponent string `yaml:"jvm_component"`

	// OverrideHashes pins override replacements by override name
	OverrideHashes map[string]string `yaml:"override_hashes"`

	// Timeout caps each download including its body. Zero leaves
	// downloads bounded only by the caller's context.
	Timeout time.Duration `yaml:"timeout"`

	// Debug enables debug logging
	Debug bool `yaml:"debug"`

	// Logger for custom logging
	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Prefix:       getDefaultPrefix(),
		CachePath:    getDefaultCachePath(),
		Make:         "make",
		JVMComponent: "liberica_jvm",
	}
}

// LoadConfig loads configuration from file, filling unset fields with defaults
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = filepath.Join(home, ".config", "bundlekit", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".config", "bundlekit", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// GetLogger returns the configured logger, a stdout debug logger, or a discarding one
func (c *Config) GetLogger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.Debug {
		c.Logger = log.New(os.Stdout, "[DEBUG] ", log.LstdFlags)
	} else {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c.Logger
}

// InstallRoot is the directory holding one subdirectory per component
func (c *Config) InstallRoot() string {
	return filepath.Join(c.Prefix, "install")
}

// WorkDir is the scratch directory for one component's fetch and build
func (c *Config) WorkDir(id string) string {
	return filepath.Join(c.CachePath, "work", id)
}

// DownloadDir holds verified archives between runs
func (c *Config) DownloadDir() string {
	return filepath.Join(c.CachePath, "downloads")
}

func getDefaultPrefix() string {
	if path := os.Getenv("BUNDLEKIT_PREFIX"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/usr/local/bundlekit"
	}

	return filepath.Join(home, ".bundlekit")
}

func getDefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bundlekit")
	}
	return filepath.Join(home, ".cache", "bundlekit")
}
