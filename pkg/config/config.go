package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig                `json:"app" yaml:"app"`
	Source   SourceConfig             `json:"source" yaml:"source"`
	Store    StoreConfig              `json:"store" yaml:"store"`
	Sync     SyncConfig               `json:"sync" yaml:"sync"`
	Gateways map[string]GatewayConfig `json:"gateways" yaml:"gateways"`
}

type AppConfig struct {
	Name string `json:"name" yaml:"name"`
}

type SourceConfig struct {
	URL            string `json:"url" yaml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

type SyncConfig struct {
	IntervalSeconds int  `json:"interval_seconds" yaml:"interval_seconds"`
	ProgressTickMs  int  `json:"progress_tick_ms" yaml:"progress_tick_ms"`
	NotifyOnSuccess bool `json:"notify_on_success" yaml:"notify_on_success"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	ChatID  string `json:"chat_id" yaml:"chat_id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Default returns the built-in configuration, matching the reference
// behavior: the jsonplaceholder post feed, a posts.db file next to the
// binary, a 10 second re-sync timer.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "postsync"},
		Source: SourceConfig{
			URL:            "https://jsonplaceholder.typicode.com/posts",
			TimeoutSeconds: 15,
		},
		Store: StoreConfig{Path: "posts.db"},
		Sync: SyncConfig{
			IntervalSeconds: 10,
			ProgressTickMs:  200,
		},
	}
}

// LoadConfig reads the config file at path, decoding by extension
// (.yaml/.yml or .json). A missing file yields the defaults; a broken
// one is fatal.
func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file %s not found, using defaults", path)
			return Default()
		}
		log.Fatalf("failed to read config file: %v", err)
	}

	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("failed to decode config file: %v", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			log.Fatalf("failed to decode config file: %v", err)
		}
	}

	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Source.URL == "" {
		c.Source.URL = def.Source.URL
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = def.Source.TimeoutSeconds
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Sync.IntervalSeconds <= 0 {
		c.Sync.IntervalSeconds = def.Sync.IntervalSeconds
	}
	if c.Sync.ProgressTickMs <= 0 {
		c.Sync.ProgressTickMs = def.Sync.ProgressTickMs
	}
}

func (c *SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *SyncConfig) ProgressTick() time.Duration {
	return time.Duration(c.ProgressTickMs) * time.Millisecond
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled {
		return tg, true
	}
	return GatewayConfig{}, false
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	dc, ok := c.Gateways["discord"]
	if ok && dc.Enabled {
		return dc, true
	}
	return GatewayConfig{}, false
}
