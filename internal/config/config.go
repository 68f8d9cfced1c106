// Package config provides configuration management for Heimdex Studio.
// Configuration is loaded from environment variables with sensible defaults;
// editor tuning comes from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".heimdex-studio"

	// Environment variable names
	EnvPort         = "HEIMDEX_STUDIO_PORT"
	EnvLogLevel     = "HEIMDEX_STUDIO_LOG_LEVEL"
	EnvDataDir      = "HEIMDEX_STUDIO_DATA_DIR"
	EnvMediaDir     = "HEIMDEX_STUDIO_MEDIA_DIR"
	EnvEditorConfig = "HEIMDEX_STUDIO_EDITOR_CONFIG"
	EnvHeadless     = "HEIMDEX_STUDIO_HEADLESS"

	// Remote backend environment variable names
	EnvCloudURL   = "HEIMDEX_STUDIO_CLOUD_URL"
	EnvCloudToken = "HEIMDEX_STUDIO_CLOUD_TOKEN"
	EnvCloudOrg   = "HEIMDEX_STUDIO_CLOUD_ORG"

	// Database filename
	DBFilename = "studio.db"

	// EditorFilename is looked up in the data directory when no editor
	// config path is set.
	EditorFilename = "editor.yaml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaDir() string
	Headless() bool
	CloudEnabled() bool
	CloudURL() string
	CloudToken() string
	CloudOrg() string
	Editor() EditorSettings
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	mediaDir string
	headless bool

	cloudURL   string
	cloudToken string
	cloudOrg   string

	editor EditorSettings
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.mediaDir = os.Getenv(EnvMediaDir)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	cfg.cloudURL = strings.TrimRight(os.Getenv(EnvCloudURL), "/")
	cfg.cloudToken = os.Getenv(EnvCloudToken)
	cfg.cloudOrg = os.Getenv(EnvCloudOrg)

	editorPath := os.Getenv(EnvEditorConfig)
	required := editorPath != ""
	if !required {
		editorPath = filepath.Join(cfg.dataDir, EditorFilename)
	}
	editor, err := LoadEditorSettings(editorPath, required)
	if err != nil {
		return nil, err
	}
	cfg.editor = editor

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MediaDir returns the directory local media may be served from
func (c *EnvConfig) MediaDir() string {
	if c.mediaDir != "" {
		return c.mediaDir
	}
	return filepath.Join(c.dataDir, "media")
}

// Headless reports whether the system tray is disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// CloudEnabled reports whether snapshots are also sent to a remote backend
func (c *EnvConfig) CloudEnabled() bool {
	return c.cloudURL != "" && c.cloudToken != ""
}

func (c *EnvConfig) CloudURL() string {
	return c.cloudURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

func (c *EnvConfig) CloudOrg() string {
	return c.cloudOrg
}

// Editor returns the editor tuning
func (c *EnvConfig) Editor() EditorSettings {
	return c.editor
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
