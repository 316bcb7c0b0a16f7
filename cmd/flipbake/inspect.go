package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/Faultbox/flipbake/internal/assets"
	"github.com/Faultbox/flipbake/internal/flipbook"
	"github.com/Faultbox/flipbake/internal/mesh"
)

var spewConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

func cmdInspect(e *env, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	dump := fs.Bool("dump", false, "Dump decoded meshes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageError("flipbake inspect [-dump] <frame.glb|manifest>")
	}

	target := fs.Arg(0)
	if !strings.HasSuffix(target, flipbook.ManifestSuffix) {
		return inspectFrame(e.stdout, target, *dump)
	}

	m, err := flipbook.LoadManifest(target)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Bake:     %s\n", m.BakeID)
	fmt.Fprintf(e.stdout, "Name:     %s\n", m.Name)
	if m.Source != "" {
		fmt.Fprintf(e.stdout, "Source:   %s\n", m.Source)
	}
	fmt.Fprintf(e.stdout, "Mode:     %s (%s)\n", m.Mode, m.Policy)
	fmt.Fprintf(e.stdout, "Duration: %.3fs, opens at %.3fs\n", m.Duration, m.CurrentTime)
	fmt.Fprintf(e.stdout, "Frames:   %d\n", len(m.Frames))
	for _, frame := range m.Frames {
		if err := inspectFrame(e.stdout, frame, *dump); err != nil {
			return err
		}
	}
	return nil
}

func inspectFrame(w io.Writer, path string, dump bool) error {
	m, err := assets.ReadFrame(path)
	if err != nil {
		return err
	}
	printMesh(w, path, m)
	if dump {
		spewConfig.Fdump(w, m)
	}
	return nil
}

func printMesh(w io.Writer, path string, m *mesh.Mesh) {
	b := m.Bounds
	fmt.Fprintf(w, "  %-40s %6d verts %6d tris  min (%.3f %.3f %.3f) max (%.3f %.3f %.3f)\n",
		path, len(m.Vertices), m.TriangleCount(),
		b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}
