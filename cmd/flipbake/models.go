package main

import (
	"flag"
	"fmt"

	"github.com/Faultbox/flipbake/pkg/formats"
)

// cmdModels lists the clip sources available in the configured archives.
func cmdModels(e *env, args []string) error {
	var limit int
	var anim bool
	fs, cfg, err := setup(e, "models", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "n", 50, "Limit results (0 = all)")
		fs.BoolVar(&anim, "animated", false, "Only list models with node animation")
	})
	if err != nil {
		return err
	}

	loader, err := openLoader(cfg.Data)
	if err != nil {
		return err
	}
	defer loader.Close()

	count := 0
	for _, path := range loader.Search(fs.Arg(0), ".rsm") {
		line := path
		if anim {
			data, err := loader.Load(path)
			if err != nil {
				return err
			}
			rsm, err := formats.ParseRSM(data)
			if err != nil || !rsm.HasAnimation() {
				continue
			}
			line = fmt.Sprintf("%-48s %6.2fs", path, rsm.AnimSeconds())
		}
		fmt.Fprintln(e.stdout, line)
		count++
		if limit > 0 && count >= limit {
			fmt.Fprintf(e.stderr, "\n(showing first %d matches, use -n 0 for all)\n", limit)
			break
		}
	}

	if count == 0 {
		fmt.Fprintln(e.stderr, "No models found")
	}
	return nil
}
