// Package config provides an optional YAML overlay for embedding code that
// prefers file-based setup over the purely programmatic engine
// configuration. Loading never fails on a missing file; defaults apply.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/prevaldb/core"
)

// JournalConfig holds command-journal specific configurations.
type JournalConfig struct {
	WriterMode       string `yaml:"writer_mode"` // "sync" or "async"
	SegmentSizeBytes int64  `yaml:"segment_size_bytes"`
	QueueDepth       int    `yaml:"queue_depth"`
	Compression      string `yaml:"compression"` // "none", "snappy", "lz4", "zstd"
}

// SnapshotConfig holds snapshot trigger configurations.
type SnapshotConfig struct {
	EveryNCommands uint64 `yaml:"every_n_commands"`
}

// EngineConfig holds all engine-related configurations, grouped logically.
type EngineConfig struct {
	DataDir         string         `yaml:"data_dir"`
	LockTimeout     string         `yaml:"lock_timeout"`
	Synchronization string         `yaml:"synchronization"` // "readwrite", "exclusive", "none"
	Storage         string         `yaml:"storage"`         // "filesystem", "none"
	CloneCommands   bool           `yaml:"clone_commands"`
	CloneResults    bool           `yaml:"clone_results"`
	Journal         JournalConfig  `yaml:"journal"`
	Snapshot        SnapshotConfig `yaml:"snapshot"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// Config is the top-level configuration struct.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ParseDuration parses a duration string. Returns the default duration if the
// string is empty or invalid. Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// ParseCompression maps a compression name to its CompressionType.
func ParseCompression(name string) (core.CompressionType, error) {
	switch name {
	case "", "none":
		return core.CompressionNone, nil
	case "snappy":
		return core.CompressionSnappy, nil
	case "lz4":
		return core.CompressionLZ4, nil
	case "zstd":
		return core.CompressionZSTD, nil
	default:
		return core.CompressionNone, fmt.Errorf("unknown compression type %q", name)
	}
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		Engine: EngineConfig{
			DataDir:         "./data",
			LockTimeout:     "30s",
			Synchronization: "readwrite",
			Storage:         "filesystem",
			CloneCommands:   true,
			CloneResults:    true,
			Journal: JournalConfig{
				WriterMode:       "sync",
				SegmentSizeBytes: 1 * 1024 * 1024, // 1 MiB
				QueueDepth:       256,
				Compression:      "none",
			},
			Snapshot: SnapshotConfig{
				EveryNCommands: 0, // disabled
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "prevaldb.log",
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
