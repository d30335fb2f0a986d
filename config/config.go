package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/webtree/dialog"
	"github.com/brettbedarf/webtree/internal/util"
)

// CLI style verbosity values accepted by ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultAddr = ":8080"

	// DefaultSessionTTL is how long a session may sit idle before it is reaped
	DefaultSessionTTL = 30 * time.Minute

	// DefaultReapInterval is how often idle sessions are looked for
	DefaultReapInterval = time.Minute

	// DefaultMaxSessions caps live sessions; 0 means unlimited
	DefaultMaxSessions = 1000

	DefaultMetricsEnabled = true
)

// DefaultAllowOrigins are the browser origins allowed by CORS when none are configured
var DefaultAllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Config contains runtime configuration values for the tree server.
type Config struct {
	LogLvl         util.LogLevel
	Addr           string        // Listen address of the HTTP server (Default ":8080")
	SeedPath       string        // Seed tree file (.json/.yaml/.yml) or http(s) URL; empty uses the built-in sample tree
	AllowOrigins   []string      // CORS origins allowed to call the API
	SessionTTL     time.Duration // Idle time after which a session and its tree are dropped (Default 30m)
	ReapInterval   time.Duration // How often idle sessions are reaped (Default 1m)
	MaxSessions    int           // Maximum live sessions, 0 for unlimited (Default 1000)
	MetricsEnabled bool          // Whether /metrics is served (Default true)
	DialogNames    dialog.Names  // Names an add dialog starts with
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a verbosity between 1 (error) and 5 (trace)
	LogLvl            *int      `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"`
	Addr              *string   `yaml:"addr,omitempty" json:"addr,omitempty"`
	SeedPath          *string   `yaml:"seed_path,omitempty" json:"seed_path,omitempty"`
	AllowOrigins      *[]string `yaml:"allow_origins,omitempty" json:"allow_origins,omitempty"`
	SessionTTLSec     *int      `yaml:"session_ttl_sec,omitempty" json:"session_ttl_sec,omitempty"`
	ReapIntervalSec   *int      `yaml:"reap_interval_sec,omitempty" json:"reap_interval_sec,omitempty"`
	MaxSessions       *int      `yaml:"max_sessions,omitempty" json:"max_sessions,omitempty"`
	MetricsEnabled    *bool     `yaml:"metrics_enabled,omitempty" json:"metrics_enabled,omitempty"`
	DefaultFileName   *string   `yaml:"default_file_name,omitempty" json:"default_file_name,omitempty"`
	DefaultFolderName *string   `yaml:"default_folder_name,omitempty" json:"default_folder_name,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:         DefaultLogLvl,
		Addr:           DefaultAddr,
		AllowOrigins:   append([]string(nil), DefaultAllowOrigins...),
		SessionTTL:     DefaultSessionTTL,
		ReapInterval:   DefaultReapInterval,
		MaxSessions:    DefaultMaxSessions,
		MetricsEnabled: DefaultMetricsEnabled,
		DialogNames: dialog.Names{
			File:   dialog.DefaultFileName,
			Folder: dialog.DefaultFolderName,
		},
	}
}

// NewConfig returns the defaults with any number of overrides applied in order.
// Nil overrides are skipped.
func NewConfig(overrides ...*ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	for _, o := range overrides {
		if o != nil {
			cfg.Merge(o)
		}
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
	if override.Addr != nil {
		c.Addr = *override.Addr
	}
	if override.SeedPath != nil {
		c.SeedPath = *override.SeedPath
	}
	if override.AllowOrigins != nil {
		c.AllowOrigins = append([]string(nil), (*override.AllowOrigins)...)
	}
	if override.SessionTTLSec != nil {
		c.SessionTTL = time.Duration(*override.SessionTTLSec) * time.Second
	}
	if override.ReapIntervalSec != nil {
		c.ReapInterval = time.Duration(*override.ReapIntervalSec) * time.Second
	}
	if override.MaxSessions != nil {
		c.MaxSessions = *override.MaxSessions
	}
	if override.MetricsEnabled != nil {
		c.MetricsEnabled = *override.MetricsEnabled
	}
	if override.DefaultFileName != nil {
		c.DialogNames.File = *override.DefaultFileName
	}
	if override.DefaultFolderName != nil {
		c.DialogNames.Folder = *override.DefaultFolderName
	}
}

// Validate reports configuration values the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty")
	case c.SessionTTL <= 0:
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	case c.ReapInterval <= 0:
		return fmt.Errorf("reap interval must be positive, got %s", c.ReapInterval)
	case c.MaxSessions < 0:
		return fmt.Errorf("max sessions must not be negative, got %d", c.MaxSessions)
	case c.DialogNames.File == "" || c.DialogNames.Folder == "":
		return fmt.Errorf("default dialog names must not be empty")
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
