// Package config loads shade's settings from a YAML file with SHADE_*
// environment overrides, and re-reads the file when it changes on disk.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SHADE_"

// values is the on-disk shape of the configuration.
type values struct {
	Opacity                  float64  `koanf:"opacity"`
	DefaultMode              string   `koanf:"default_mode"`
	DimDirectivesWhenVisible bool     `koanf:"dim_directives_when_visible"`
	Languages                []string `koanf:"languages"`
	Listen                   string   `koanf:"listen"`
	LogLevel                 string   `koanf:"log_level"`
	FoldAckTimeoutMS         int      `koanf:"fold_ack_timeout_ms"`
	Service                  service  `koanf:"service"`
}

type service struct {
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	Opacity float64  `koanf:"opacity"`
}

func defaults() values {
	return values{
		Opacity:          0.4,
		DefaultMode:      "visible",
		Languages:        []string{"c", "cpp"},
		Listen:           "127.0.0.1:7699",
		LogLevel:         "info",
		FoldAckTimeoutMS: 100,
		Service:          service{Opacity: 0.55},
	}
}

// Config holds the loaded settings. Reads are safe to interleave with
// Reload; it implements host.Settings.
type Config struct {
	path string
	mu   sync.RWMutex
	v    values
}

// Load reads the configuration from path. A missing file is not an error;
// defaults and environment overrides still apply. An empty path skips the
// file entirely.
func Load(path string) (*Config, error) {
	c := &Config{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file and environment. Precedence, highest first:
// environment, file, defaults.
func (c *Config) Reload() error {
	k := koanf.New(".")

	if c.path != "" {
		content, err := os.ReadFile(c.path)
		if err == nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return fmt.Errorf("parse config %s: %w", c.path, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("read config %s: %w", c.path, err)
		}
	}

	// SHADE_DEFAULT_MODE -> default_mode, SHADE_SERVICE_COMMAND ->
	// service.command.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if rest, ok := strings.CutPrefix(key, "service_"); ok {
			return "service." + rest
		}
		return key
	}), nil)
	if err != nil {
		return fmt.Errorf("load env config: %w", err)
	}

	v := defaults()
	if err := k.Unmarshal("", &v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
	return nil
}

// Path returns the watched file path.
func (c *Config) Path() string { return c.path }

func clampOpacity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Opacity is the local dimming opacity in [0,1].
func (c *Config) Opacity() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clampOpacity(c.v.Opacity)
}

// ServiceOpacity mirrors the analysis service's own dimming opacity.
func (c *Config) ServiceOpacity() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clampOpacity(c.v.Service.Opacity)
}

// DefaultMode names the startup mode used when no state is persisted.
func (c *Config) DefaultMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.DefaultMode
}

// DimDirectivesWhenVisible reports the directives-in-visible policy.
func (c *Config) DimDirectivesWhenVisible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.DimDirectivesWhenVisible
}

// Languages lists the supported language identifiers.
func (c *Config) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.v.Languages))
	copy(out, c.v.Languages)
	return out
}

// Listen is the websocket listen address for the editor channel.
func (c *Config) Listen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.Listen
}

// LogLevel names the logging level.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.LogLevel
}

// FoldAckTimeout is the fallback wait before fold commands are issued.
func (c *Config) FoldAckTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.v.FoldAckTimeoutMS) * time.Millisecond
}

// ServiceCommand returns the analysis service command line.
func (c *Config) ServiceCommand() (string, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	args := make([]string, len(c.v.Service.Args))
	copy(args, c.v.Service.Args)
	return c.v.Service.Command, args
}
