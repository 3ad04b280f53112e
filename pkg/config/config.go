// Package config handles engine configuration loaded from hibana.yaml and
// HIBANA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// UI holds tunables for dialogue pacing and the built-in overlays.
type UI struct {
	// ScreenWidth/ScreenHeight define the world coordinate space used by
	// camera transforms and hotspot hit testing.
	ScreenWidth  int `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight int `mapstructure:"screen_height" yaml:"screen_height"`

	// CharsPerSecond is the dialogue text reveal rate.
	CharsPerSecond float64 `mapstructure:"chars_per_second" yaml:"chars_per_second"`

	// InventoryItemsPerPage bounds inventory paging.
	InventoryItemsPerPage int `mapstructure:"inventory_items_per_page" yaml:"inventory_items_per_page"`

	// LoadingMinDisplayMS is the minimum time the loading overlay stays
	// visible once shown, so it never flashes.
	LoadingMinDisplayMS int64 `mapstructure:"loading_min_display_ms" yaml:"loading_min_display_ms"`

	// LoadingSlowThresholdMS marks a scene load as slow; the next load of
	// the same script shows the overlay up front.
	LoadingSlowThresholdMS int64 `mapstructure:"loading_slow_threshold_ms" yaml:"loading_slow_threshold_ms"`

	// NotifyDefaultSeconds is the on-screen lifetime of notify messages
	// that do not specify one.
	NotifyDefaultSeconds float64 `mapstructure:"notify_default_seconds" yaml:"notify_default_seconds"`
}

// Video holds framedrop tuning for the video backend.
type Video struct {
	// Framedrop is one of "on", "off", "adaptive".
	Framedrop string `mapstructure:"framedrop" yaml:"framedrop"`

	// AdaptiveLagMS switches adaptive framedrop on when decode lag
	// exceeds this value.
	AdaptiveLagMS int64 `mapstructure:"adaptive_lag_ms" yaml:"adaptive_lag_ms"`

	// AdaptiveQueueDepth switches adaptive framedrop on when the decoded
	// frame queue exceeds this depth.
	AdaptiveQueueDepth int `mapstructure:"adaptive_queue_depth" yaml:"adaptive_queue_depth"`

	// AdaptiveCooldownFrames is the hold period before adaptive framedrop
	// switches back off.
	AdaptiveCooldownFrames int `mapstructure:"adaptive_cooldown_frames" yaml:"adaptive_cooldown_frames"`
}

// Config is the full engine configuration.
type Config struct {
	UI    UI    `mapstructure:"ui" yaml:"ui"`
	Video Video `mapstructure:"video" yaml:"video"`

	// Features gates optional script surfaces ("items", "phone", "map").
	Features map[string]bool `mapstructure:"features" yaml:"features"`

	// SavePath is the directory save slots are written to, relative to
	// the project root.
	SavePath string `mapstructure:"save_path" yaml:"save_path"`

	// SoundFont is the .sf2 file used for MIDI background music.
	SoundFont string `mapstructure:"soundfont" yaml:"soundfont"`
}

// Default returns the configuration used when no hibana.yaml exists.
func Default() *Config {
	return &Config{
		UI: UI{
			ScreenWidth:            1280,
			ScreenHeight:           720,
			CharsPerSecond:         40,
			InventoryItemsPerPage:  10,
			LoadingMinDisplayMS:    350,
			LoadingSlowThresholdMS: 120,
			NotifyDefaultSeconds:   2.0,
		},
		Video: Video{
			Framedrop:              "adaptive",
			AdaptiveLagMS:          120,
			AdaptiveQueueDepth:     8,
			AdaptiveCooldownFrames: 90,
		},
		Features: map[string]bool{
			"items": true,
			"phone": true,
			"map":   true,
		},
		SavePath: "saves",
	}
}

// Load reads hibana.yaml from the project directory, applying defaults for
// missing fields and HIBANA_* environment overrides. A missing file is not
// an error.
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("hibana")
	v.SetConfigType("yaml")
	v.AddConfigPath(projectDir)
	v.SetEnvPrefix("HIBANA")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("ui.screen_width", def.UI.ScreenWidth)
	v.SetDefault("ui.screen_height", def.UI.ScreenHeight)
	v.SetDefault("ui.chars_per_second", def.UI.CharsPerSecond)
	v.SetDefault("ui.inventory_items_per_page", def.UI.InventoryItemsPerPage)
	v.SetDefault("ui.loading_min_display_ms", def.UI.LoadingMinDisplayMS)
	v.SetDefault("ui.loading_slow_threshold_ms", def.UI.LoadingSlowThresholdMS)
	v.SetDefault("ui.notify_default_seconds", def.UI.NotifyDefaultSeconds)
	v.SetDefault("video.framedrop", def.Video.Framedrop)
	v.SetDefault("video.adaptive_lag_ms", def.Video.AdaptiveLagMS)
	v.SetDefault("video.adaptive_queue_depth", def.Video.AdaptiveQueueDepth)
	v.SetDefault("video.adaptive_cooldown_frames", def.Video.AdaptiveCooldownFrames)
	v.SetDefault("features", def.Features)
	v.SetDefault("save_path", def.SavePath)
	v.SetDefault("soundfont", def.SoundFont)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UI.ScreenWidth <= 0 || c.UI.ScreenHeight <= 0 {
		return fmt.Errorf("invalid screen size: %dx%d", c.UI.ScreenWidth, c.UI.ScreenHeight)
	}
	if c.UI.CharsPerSecond <= 0 {
		return fmt.Errorf("chars_per_second must be positive, got %v", c.UI.CharsPerSecond)
	}
	if c.UI.InventoryItemsPerPage <= 0 {
		return fmt.Errorf("inventory_items_per_page must be positive, got %d", c.UI.InventoryItemsPerPage)
	}
	switch c.Video.Framedrop {
	case "on", "off", "adaptive":
	default:
		return fmt.Errorf("video.framedrop must be on, off, or adaptive, got %q", c.Video.Framedrop)
	}
	return nil
}

// WriteStarter writes a commented-defaults hibana.yaml into the project
// directory. It refuses to overwrite an existing file.
func WriteStarter(projectDir string) error {
	path := filepath.Join(projectDir, "hibana.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
