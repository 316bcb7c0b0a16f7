package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/flipbake/internal/assets"
	"github.com/Faultbox/flipbake/internal/bake"
	"github.com/Faultbox/flipbake/internal/config"
	"github.com/Faultbox/flipbake/internal/flipbook"
	"github.com/Faultbox/flipbake/internal/logger"
	"github.com/Faultbox/flipbake/internal/source/pointcache"
	"github.com/Faultbox/flipbake/internal/source/rsmsource"
)

func cmdClip(e *env, args []string) error {
	var opts rsmsource.Options
	fs, cfg, err := setup(e, "clip", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&opts.ForceTwoSided, "two-sided", false, "Emit back faces for every face")
		fs.BoolVar(&opts.FlatShading, "flat", false, "Keep face normals on smooth models")
	})
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageError("flipbake clip [options] <model.rsm> [name]")
	}
	opts.ForceTwoSided = opts.ForceTwoSided || cfg.Bake.ForceTwoSided

	loader, err := openLoader(cfg.Data)
	if err != nil {
		return err
	}
	defer loader.Close()

	modelPath := fs.Arg(0)
	data, err := loader.Load(modelPath)
	if err != nil {
		return err
	}
	model, err := rsmsource.Parse(modelPath, data, opts)
	if err != nil {
		return err
	}

	name := model.Name()
	if fs.NArg() > 1 {
		name = fs.Arg(1)
	}
	return runBake(e, cfg, modelPath, bake.Request{
		Source: model,
		Mode:   bake.ModeClip,
		Spec:   bake.SampleSpec{Cadence: cfg.Bake.FrameRate, Output: outputFor(cfg, name)},
	})
}

func cmdStream(e *env, args []string) error {
	fs, cfg, err := setup(e, "stream", args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageError("flipbake stream [options] <cache.yaml> [name]")
	}

	cachePath := fs.Arg(0)
	cache, err := pointcache.Load(cachePath)
	if err != nil {
		return err
	}
	src := pointcache.NewSource(cache)

	name := src.Name()
	if fs.NArg() > 1 {
		name = fs.Arg(1)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(cachePath), filepath.Ext(cachePath))
	}
	return runBake(e, cfg, cachePath, bake.Request{
		Source: src,
		Mode:   bake.ModeStream,
		Spec:   bake.SampleSpec{Cadence: cfg.Bake.StepSize, Output: outputFor(cfg, name)},
	})
}

func outputFor(cfg *config.Config, name string) string {
	return filepath.ToSlash(filepath.Join(cfg.Bake.OutputDir, name))
}

// openLoader registers the configured archives and directories. Missing
// archives are skipped so the default data.grf is optional.
func openLoader(data config.DataConfig) (*assets.Loader, error) {
	loader := assets.NewLoader()
	for _, path := range data.GRFPaths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Log.Debug("skipping missing archive", zap.String("path", path))
			continue
		}
		if err := loader.AddArchive(path); err != nil {
			loader.Close()
			return nil, err
		}
	}
	for _, dir := range data.Dirs {
		loader.AddDir(dir)
	}
	return loader, nil
}

func runBake(e *env, cfg *config.Config, source string, req bake.Request) error {
	log := logger.Log.Named("bake")
	store := assets.NewFrameStore(log.Named("store"))

	confirm := bake.AlwaysConfirm
	if !cfg.Bake.AssumeYes {
		confirm = promptConfirm(e.stdin, e.stdout)
	}
	b := bake.NewBaker(store, bake.WithLogger(log), bake.WithConfirmer(confirm))

	res, err := b.Bake(req)
	if err != nil {
		if errors.Is(err, bake.ErrCancelled) {
			fmt.Fprintln(e.stdout, "Bake cancelled")
		}
		return err
	}

	fmt.Fprintf(e.stdout, "Baked %d frames of %s (%.3fs, %s)\n", len(res.Frames), res.Name, res.Duration, res.Policy())
	if !cfg.Bake.WriteManifest {
		return nil
	}

	m := res.Manifest()
	m.Source = source
	path := filepath.FromSlash(flipbook.ManifestPath(req.Spec.Output))
	if err := m.Save(path); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	fmt.Fprintf(e.stdout, "Manifest: %s\n", path)
	return nil
}

// promptConfirm asks on out and accepts "y" or "yes" from in.
func promptConfirm(in io.Reader, out io.Writer) bake.Confirmer {
	r := bufio.NewReader(in)
	return bake.ConfirmFunc(func(message string, _ int) bool {
		fmt.Fprintf(out, "%s. Continue? [y/N] ", message)
		line, _ := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}
