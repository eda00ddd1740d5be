// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package config loads layered daemon configuration: built-in defaults,
// then an optional YAML file, then environment variables. Precedence is
// ENV > file > defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Poll    PollConfig    `koanf:"poll"`
	Push    PushConfig    `koanf:"push"`
	Upload  UploadConfig  `koanf:"upload"`
	API     APIConfig     `koanf:"api"`
	Store   StoreConfig   `koanf:"store"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig points at the wall server this daemon synchronizes with.
type ServerConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// PollConfig sets the two polling cadences and the request-rate floor.
type PollConfig struct {
	ClientInterval time.Duration `koanf:"client_interval"`
	StatusInterval time.Duration `koanf:"status_interval"`
	MinSpacing     time.Duration `koanf:"min_spacing"`
}

// PushConfig controls the push-event channel.
type PushConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	MaxRetries     int           `koanf:"max_retries"`
	PingInterval   time.Duration `koanf:"ping_interval"`
}

// UploadConfig bounds the sequential upload pipeline.
type UploadConfig struct {
	FileTimeout   time.Duration `koanf:"file_timeout"`
	TerminalGrace time.Duration `koanf:"terminal_grace"`
}

// APIConfig configures the local dashboard API.
type APIConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StoreConfig configures warm-start snapshot persistence.
type StoreConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required (WALL_SERVER_URL)")
	}
	parsed, err := url.Parse(c.Server.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("server.url %q is not a valid URL", c.Server.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.url scheme must be http or https, got %q", parsed.Scheme)
	}

	if c.Poll.ClientInterval <= 0 {
		return fmt.Errorf("poll.client_interval must be positive")
	}
	if c.Poll.StatusInterval <= 0 {
		return fmt.Errorf("poll.status_interval must be positive")
	}
	if c.Poll.MinSpacing < 0 {
		return fmt.Errorf("poll.min_spacing must not be negative")
	}

	if c.Push.Enabled {
		if c.Push.MaxRetries < 1 {
			return fmt.Errorf("push.max_retries must be at least 1")
		}
		if c.Push.ReconnectDelay <= 0 {
			return fmt.Errorf("push.reconnect_delay must be positive")
		}
	}

	if c.Upload.FileTimeout <= 0 {
		return fmt.Errorf("upload.file_timeout must be positive")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.enabled is set")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}

	return nil
}
