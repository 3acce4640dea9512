// Package config loads server settings from defaults, an optional TOML file
// and command line / environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendONNX        = "onnx"
	BackendUltralytics = "ultralytics"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Model  ModelConfig  `toml:"model"`
	Upload UploadConfig `toml:"upload"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Host              string        `toml:"host"`
	Port              int           `toml:"port"`
	MaxUploadBytes    int64         `toml:"max_upload_bytes"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
}

type ModelConfig struct {
	Backend        string        `toml:"backend"`
	Path           string        `toml:"path"`
	MetadataPath   string        `toml:"metadata_path"`
	LibraryPath    string        `toml:"library_path"`
	BridgeCommand  string        `toml:"bridge_command"`
	PredictTimeout time.Duration `toml:"predict_timeout"`
}

type UploadConfig struct {
	TempDir string `toml:"temp_dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file or flags are given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8000,
			MaxUploadBytes:    32 << 20,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Model: ModelConfig{
			Backend:       BackendONNX,
			Path:          "models/best.onnx",
			MetadataPath:  "models/model_metadata.json",
			BridgeCommand: "python3 scripts/ultralytics_bridge.py",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the TOML file at path over the defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	c.Model.Backend = strings.ToLower(strings.TrimSpace(c.Model.Backend))
	switch c.Model.Backend {
	case BackendONNX:
	case BackendUltralytics:
		if strings.TrimSpace(c.Model.BridgeCommand) == "" {
			return errors.New("model.bridge_command is required for the ultralytics backend")
		}
	default:
		return fmt.Errorf("unsupported model backend %q", c.Model.Backend)
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Model.PredictTimeout < 0 {
		return fmt.Errorf("negative predict timeout %s", c.Model.PredictTimeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
