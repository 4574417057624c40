// Package config loads the gateway daemon's static configuration: log
// level, timestamp format, control socket path, and a seed job list
// applied at startup. Generalizes the teacher's src/config.go file-based
// settings into a single YAML document via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"
	"gopkg.in/yaml.v3"
)

// SeedJob is one CREATE request to issue automatically at startup,
// expressed in the config file's terms rather than wire attributes.
type SeedJob struct {
	SrcIF string `yaml:"src_if"`
	DstIF string `yaml:"dst_if"`
	CANID uint32 `yaml:"can_id"`
	Mask  uint32 `yaml:"can_mask"`
	Echo  bool   `yaml:"echo"`
}

// Config is the daemon's top-level configuration document.
type Config struct {
	LogLevel   string    `yaml:"log_level"`   // debug, info, warn, error
	TimeFormat string    `yaml:"time_format"` // strftime pattern for log timestamps
	SocketPath string    `yaml:"socket_path"` // control-plane Unix domain socket
	Seed       []SeedJob `yaml:"seed"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:   "info",
		TimeFormat: "%Y-%m-%d %H:%M:%S",
		SocketPath: "/run/cangwd.sock",
	}
}

// Load reads and parses the YAML document at path, filling in defaults
// for any field left unset.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = Default().SocketPath
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = Default().TimeFormat
	}
	if _, err := strftime.New(cfg.TimeFormat); err != nil {
		return Config{}, fmt.Errorf("config: time_format %q: %w", cfg.TimeFormat, err)
	}
	return cfg, nil
}

// FormatTime renders t using the configured strftime pattern, the same way
// the teacher formats its transmit-log timestamps.
func (c Config) FormatTime(t time.Time) string {
	s, _ := strftime.Format(c.TimeFormat, t)
	return s
}
