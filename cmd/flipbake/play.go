package main

import (
	"fmt"
	"strconv"

	"github.com/Faultbox/flipbake/internal/flipbook"
)

func openManifest(path string, slot flipbook.Slot[string]) (*flipbook.Manifest, *flipbook.Player[string], error) {
	m, err := flipbook.LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	policy, err := m.SeekPolicy()
	if err != nil {
		return nil, nil, err
	}
	return m, flipbook.New(m.Sequence(), policy, slot), nil
}

func cmdPlay(e *env, args []string) error {
	fs, cfg, err := setup(e, "play", args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageError("flipbake play [options] <manifest>")
	}

	var now float64
	slot := flipbook.SlotFunc[string](func(frame string) {
		fmt.Fprintf(e.stdout, "%8.3fs  %s\n", now, frame)
	})
	m, p, err := openManifest(fs.Arg(0), slot)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "%s: %d frames, %.3fs, %s\n", m.Name, p.Len(), p.Duration(), p.Policy())
	for i := 0; i < cfg.Playback.Ticks; i++ {
		now = m.CurrentTime + float64(i)/cfg.Playback.TickRate
		p.Advance(now)
	}
	fmt.Fprintf(e.stdout, "%d ticks, %d frame changes\n", cfg.Playback.Ticks, p.Writes())
	return nil
}

func cmdScrub(e *env, args []string) error {
	fs, _, err := setup(e, "scrub", args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usageError("flipbake scrub [options] <manifest> <time>...")
	}

	_, p, err := openManifest(fs.Arg(0), nil)
	if err != nil {
		return err
	}

	for _, arg := range fs.Args()[1:] {
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return usageError("bad time %q", arg)
		}
		p.SetCurrentTime(t)
		p.Update()

		frame, ok := p.Frame()
		if !ok {
			fmt.Fprintf(e.stdout, "%8.3fs  (empty)\n", t)
			continue
		}
		fmt.Fprintf(e.stdout, "%8.3fs -> %.3fs  frame %d  %s\n", t, p.CurrentTime(), p.Index(), frame)
	}
	return nil
}
