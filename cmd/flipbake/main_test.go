package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/flipbake/internal/bake"
	"github.com/Faultbox/flipbake/pkg/grf"
)

const clothYAML = `
name: flag
start_time: 0.25
parts:
  - name: cloth
    indices: [0, 1, 2]
    keys:
      - {time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
      - {time: 1, positions: [[0, 0, 2], [1, 0, 2], [0, 1, 2]]}
`

// workspace isolates a test from any user or working-directory config.
func workspace(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	testChdir(t, t.TempDir())
	if err := os.WriteFile("flag.yaml", []byte(clothYAML), 0644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	e := &env{stdin: strings.NewReader(stdin), stdout: &out, stderr: &errOut}
	err := run(e, args)
	return out.String(), err
}

func TestStreamBakeAndPlayback(t *testing.T) {
	workspace(t)

	out, err := runCmd(t, "", "stream", "-yes", "-step", "0.25", "-output-dir", "out", "flag.yaml")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !strings.Contains(out, "Baked 5 frames of flag") {
		t.Errorf("unexpected output:\n%s", out)
	}
	for i := 0; i < 5; i++ {
		path := filepath.Join("out", fmt.Sprintf("flag_%d.glb", i))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("frame %s missing: %v", path, err)
		}
	}
	manifest := filepath.Join("out", "flag.flipbook.yaml")

	t.Run("no overwrite", func(t *testing.T) {
		_, err := runCmd(t, "", "stream", "-yes", "-step", "0.25", "-output-dir", "out", "flag.yaml")
		if !errors.Is(err, bake.ErrOutputAlreadyExists) {
			t.Errorf("expected ErrOutputAlreadyExists, got %v", err)
		}
	})

	t.Run("scrub clamps", func(t *testing.T) {
		out, err := runCmd(t, "", "scrub", manifest, "0.25", "5", "-1")
		if err != nil {
			t.Fatalf("scrub: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got:\n%s", out)
		}
		for i, want := range []string{"frame 1 ", "frame 4 ", "frame 0 "} {
			if !strings.Contains(lines[i], want) {
				t.Errorf("line %d = %q, want %q", i, lines[i], want)
			}
		}
	})

	t.Run("play opens at start time", func(t *testing.T) {
		out, err := runCmd(t, "", "play", "-ticks", "3", "-tick-rate", "4", manifest)
		if err != nil {
			t.Fatalf("play: %v", err)
		}
		if !strings.Contains(out, "flag_1.glb") || strings.Contains(out, "flag_0.glb") {
			t.Errorf("expected playback to start at frame 1:\n%s", out)
		}
		if !strings.Contains(out, "3 ticks, 3 frame changes") {
			t.Errorf("unexpected summary:\n%s", out)
		}
	})

	t.Run("inspect manifest", func(t *testing.T) {
		out, err := runCmd(t, "", "inspect", manifest)
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		if !strings.Contains(out, "Frames:   5") || !strings.Contains(out, "stream (clamp)") {
			t.Errorf("unexpected inspect output:\n%s", out)
		}
		if strings.Count(out, " verts ") != 5 {
			t.Errorf("expected 5 frame lines:\n%s", out)
		}
	})

	t.Run("inspect dump", func(t *testing.T) {
		out, err := runCmd(t, "", "inspect", "-dump", filepath.Join("out", "flag_0.glb"))
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		if !strings.Contains(out, "Vertices") {
			t.Errorf("expected a mesh dump:\n%s", out)
		}
	})
}

func TestStreamConfirmation(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		wantErr error
	}{
		{"declined", "n\n", bake.ErrCancelled},
		{"no answer", "", bake.ErrCancelled},
		{"accepted", "yes\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)

			out, err := runCmd(t, tt.answer, "stream", "-step", "0.5", "-output-dir", "out", "flag.yaml")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(out, "will generate 3 meshes") {
				t.Errorf("prompt missing estimate:\n%s", out)
			}

			if _, err := os.Stat("out"); tt.wantErr != nil && !errors.Is(err, os.ErrNotExist) {
				t.Errorf("cancelled bake created the output dir: %v", err)
			}
			frames, _ := filepath.Glob(filepath.Join("out", "*.glb"))
			staging, _ := filepath.Glob(filepath.Join("out", ".flipbake-*"))
			if len(staging) != 0 {
				t.Errorf("staging left behind: %v", staging)
			}
			want := 0
			if tt.wantErr == nil {
				want = 3
			}
			if len(frames) != want {
				t.Errorf("expected %d frames, got %v", want, frames)
			}
		})
	}
}

func TestUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"render"}},
		{"stream without cache", []string{"stream"}},
		{"scrub without times", []string{"scrub", "x.flipbook.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			_, err := runCmd(t, "", tt.args...)
			if !errors.Is(err, errUsage) {
				t.Errorf("expected usage error, got %v", err)
			}
		})
	}
}

func TestModels(t *testing.T) {
	workspace(t)

	var buf bytes.Buffer
	err := grf.Write(&buf, map[string][]byte{
		"data/model/windmill.rsm": []byte("x"),
		"data/model/well.rsm":     []byte("x"),
		"data/texture/well.bmp":   []byte("x"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("test.grf", buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"data/model/well.rsm", "data/model/windmill.rsm"}},
		{"wind", []string{"data/model/windmill.rsm"}},
		{"we*.rsm", []string{"data/model/well.rsm"}},
		{"w*l.rsm", []string{"data/model/well.rsm", "data/model/windmill.rsm"}},
	}
	for _, tt := range tests {
		out, err := runCmd(t, "", "models", "-grf", "test.grf", tt.pattern)
		if err != nil {
			t.Fatalf("models %q: %v", tt.pattern, err)
		}
		got := strings.Fields(out)
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("models %q = %v, want %v", tt.pattern, got, tt.want)
		}
	}
}

func TestHelp(t *testing.T) {
	out, err := runCmd(t, "", "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out, "flipbake <command>") {
		t.Errorf("unexpected help:\n%s", out)
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}
