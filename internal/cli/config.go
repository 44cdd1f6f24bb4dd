package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the runtime configuration for flamezoom.
// It can be populated from CLI flags, config files, or both.
type Config struct {
	// Comment field for user documentation (ignored by the application)
	Comment string `json:"comment,omitempty"`

	// Display budget every profile is scaled to, and the terminal width it maps onto.
	FullWidth int    `json:"full_width,omitempty"`
	Columns   int    `json:"columns,omitempty"`
	Color     string `json:"color,omitempty"` // "auto" (default), "always" or "never"

	// Seed for node colors; 0 picks a random seed per run.
	Seed uint64 `json:"seed,omitempty"`

	// Number of spans to buffer
	TraceBufferSize int `json:"trace_buffer_size,omitempty"`

	// OTLP server configuration
	OTLPHost string `json:"otlp_host,omitempty"`
	OTLPPort int    `json:"otlp_port,omitempty"`

	// Web UI configuration; port 0 disables the web UI
	WebUIHost string `json:"webui_host,omitempty"`
	WebUIPort int    `json:"webui_port,omitempty"`

	// MCP transport: "stdio" (default) or "none"
	Transport string `json:"transport,omitempty"`

	// OpenTelemetry Collector config whose file exporters are tailed by serve
	OtelConfig string `json:"otel_config,omitempty"`

	// Logging configuration
	Verbose bool `json:"verbose,omitempty"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		FullWidth:       1000,
		Columns:         120,
		Color:           "auto",
		TraceBufferSize: 10_000,
		OTLPHost:        "127.0.0.1",
		OTLPPort:        0, // 0 means ephemeral port assignment
		WebUIHost:       "127.0.0.1",
		WebUIPort:       4381,
		Transport:       "stdio",
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.FullWidth <= 0 || c.FullWidth > math.MaxUint16:
		return fmt.Errorf("%w: full_width %d must be between 1 and %d", ErrInvalidConfig, c.FullWidth, math.MaxUint16)
	case c.Columns <= 0:
		return fmt.Errorf("%w: columns %d must be positive", ErrInvalidConfig, c.Columns)
	case c.TraceBufferSize <= 0:
		return fmt.Errorf("%w: trace_buffer_size %d must be positive", ErrInvalidConfig, c.TraceBufferSize)
	case c.OTLPPort < 0 || c.OTLPPort > 65535:
		return fmt.Errorf("%w: otlp_port %d out of range", ErrInvalidConfig, c.OTLPPort)
	case c.WebUIPort < 0 || c.WebUIPort > 65535:
		return fmt.Errorf("%w: webui_port %d out of range", ErrInvalidConfig, c.WebUIPort)
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: color %q must be auto, always or never", ErrInvalidConfig, c.Color)
	}
	switch c.Transport {
	case "stdio", "none":
	default:
		return fmt.Errorf("%w: transport %q must be stdio or none", ErrInvalidConfig, c.Transport)
	}
	return nil
}

// LoadConfigFromFile loads configuration from a JSON file at the given path.
// It returns an error if the file cannot be read or parsed.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return parseConfig(path, data)
}

func parseConfig(path string, data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// FindProjectConfig searches for a .flamezoom.json config file.
// It starts in the current directory and walks up looking for the file,
// stopping when it finds a .git directory (project root) or reaches root.
func FindProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return findProjectConfigFrom(dir, os.Stat)
}

func findProjectConfigFrom(dir string, stat func(string) (os.FileInfo, error)) (string, error) {
	for {
		configPath := filepath.Join(dir, ".flamezoom.json")
		if _, err := stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at a git repo root even if no config was found
		if _, err := stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// GlobalConfigPath returns the path to the global config file.
// This is ~/.config/flamezoom/config.json
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "flamezoom", "config.json")
}

// MergeConfigs merges two configs with the overlay taking precedence.
// Fields in overlay override corresponding fields in base.
// Returns a new Config with the merged values.
func MergeConfigs(base, overlay *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if overlay == nil {
		return base
	}

	merged := *base

	if overlay.FullWidth > 0 {
		merged.FullWidth = overlay.FullWidth
	}
	if overlay.Columns > 0 {
		merged.Columns = overlay.Columns
	}
	if overlay.Color != "" {
		merged.Color = overlay.Color
	}
	if overlay.Seed != 0 {
		merged.Seed = overlay.Seed
	}
	if overlay.TraceBufferSize > 0 {
		merged.TraceBufferSize = overlay.TraceBufferSize
	}
	if overlay.OTLPHost != "" {
		merged.OTLPHost = overlay.OTLPHost
	}
	if overlay.OTLPPort != 0 {
		merged.OTLPPort = overlay.OTLPPort
	}
	if overlay.WebUIHost != "" {
		merged.WebUIHost = overlay.WebUIHost
	}
	if overlay.WebUIPort != 0 {
		merged.WebUIPort = overlay.WebUIPort
	}
	if overlay.Transport != "" {
		merged.Transport = overlay.Transport
	}
	if overlay.OtelConfig != "" {
		merged.OtelConfig = overlay.OtelConfig
	}
	if overlay.Verbose {
		merged.Verbose = overlay.Verbose
	}

	return &merged
}

// LoadEffectiveConfig loads the effective configuration by merging:
// 1. Built-in defaults
// 2. Global config file (if exists)
// 3. Project config file (if exists and no explicit path)
// 4. Explicit config file (if specified via configPath)
// Later sources override earlier ones.
func LoadEffectiveConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Global config is optional; errors are ignored
	if globalPath := GlobalConfigPath(); globalPath != "" {
		if globalCfg, err := LoadConfigFromFile(globalPath); err == nil {
			config = MergeConfigs(config, globalCfg)
		}
	}

	if configPath == "" {
		if projectPath, err := FindProjectConfig(); err == nil {
			projectCfg, err := LoadConfigFromFile(projectPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load project config: %w", err)
			}
			config = MergeConfigs(config, projectCfg)
		}
	} else {
		explicitCfg, err := LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = MergeConfigs(config, explicitCfg)
	}

	return config, nil
}
