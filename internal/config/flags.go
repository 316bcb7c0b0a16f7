package config

import (
	"flag"
	"strings"
)

// Flags are the command-line overrides shared by every subcommand.
type Flags struct {
	Config    string
	Debug     bool
	LogFile   string
	OutputDir string
	FPS       float64
	Step      float64
	Yes       bool
	GRF       string
	TickRate  float64
	Ticks     int
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Also log to this file")
	fs.StringVar(&f.OutputDir, "output-dir", "", "Directory baked frames are written to")
	fs.Float64Var(&f.FPS, "fps", 0, "Frame rate for clip bakes")
	fs.Float64Var(&f.Step, "step", 0, "Step size in seconds for stream bakes")
	fs.BoolVar(&f.Yes, "yes", false, "Skip the confirmation prompt")
	fs.StringVar(&f.GRF, "grf", "", "Comma-separated GRF archives, replacing data.grf_paths")
	fs.Float64Var(&f.TickRate, "tick-rate", 0, "Playback ticks per second")
	fs.IntVar(&f.Ticks, "ticks", -1, "Number of playback ticks to simulate")
	return f
}

// apply applies CLI flag overrides to the config. Zero values mean "not set".
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.OutputDir != "" {
		cfg.Bake.OutputDir = f.OutputDir
	}
	if f.FPS != 0 {
		cfg.Bake.FrameRate = f.FPS
	}
	if f.Step != 0 {
		cfg.Bake.StepSize = f.Step
	}
	if f.Yes {
		cfg.Bake.AssumeYes = true
	}
	if f.GRF != "" {
		var paths []string
		for _, p := range strings.Split(f.GRF, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Data.GRFPaths = paths
	}
	if f.TickRate != 0 {
		cfg.Playback.TickRate = f.TickRate
	}
	if f.Ticks >= 0 {
		cfg.Playback.Ticks = f.Ticks
	}
}
