// Package config loads flipbake settings.
package config

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all settings.
type Config struct {
	Bake     BakeConfig     `yaml:"bake"`
	Playback PlaybackConfig `yaml:"playback"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BakeConfig holds sampling and output settings.
type BakeConfig struct {
	OutputDir     string  `yaml:"output_dir"`
	FrameRate     float64 `yaml:"fps"`       // clip bakes
	StepSize      float64 `yaml:"step_size"` // stream bakes, seconds
	AssumeYes     bool    `yaml:"assume_yes"`
	ForceTwoSided bool    `yaml:"force_two_sided"`
	WriteManifest bool    `yaml:"write_manifest"`
}

// PlaybackConfig drives the play and scrub commands.
type PlaybackConfig struct {
	TickRate float64 `yaml:"tick_rate"` // ticks per second
	Ticks    int     `yaml:"ticks"`     // ticks to simulate
}

// DataConfig holds source data locations.
type DataConfig struct {
	GRFPaths []string `yaml:"grf_paths"` // searched last to first
	Dirs     []string `yaml:"dirs"`      // loose files, searched after archives
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			OutputDir:     "baked",
			FrameRate:     30,
			StepSize:      1.0 / 30,
			WriteManifest: true,
		},
		Playback: PlaybackConfig{
			TickRate: 30,
			Ticks:    60,
		},
		Data: DataConfig{
			GRFPaths: []string{"data.grf"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks values that would make a bake or playback meaningless.
func (c *Config) Validate() error {
	positive := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %g", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := positive("bake.fps", c.Bake.FrameRate); err != nil {
		return err
	}
	if err := positive("bake.step_size", c.Bake.StepSize); err != nil {
		return err
	}
	if err := positive("playback.tick_rate", c.Playback.TickRate); err != nil {
		return err
	}
	if c.Playback.Ticks < 0 {
		return fmt.Errorf("%w: playback.ticks must be >= 0, got %d", ErrInvalidConfig, c.Playback.Ticks)
	}
	return nil
}
