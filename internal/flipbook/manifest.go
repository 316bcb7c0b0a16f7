package flipbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestSuffix is appended to a bake's output location to name its manifest.
const ManifestSuffix = ".flipbook.yaml"

// ErrInvalidManifest is returned for manifests that cannot drive a player.
var ErrInvalidManifest = errors.New("invalid flipbook manifest")

// Manifest is the durable description of a baked sequence: which frame
// assets it consists of and how to play them back.
type Manifest struct {
	BakeID      string    `yaml:"bake_id"`
	Name        string    `yaml:"name"`
	Source      string    `yaml:"source,omitempty"`
	Mode        string    `yaml:"mode"`
	Policy      string    `yaml:"policy"`
	Duration    float64   `yaml:"duration"`
	CurrentTime float64   `yaml:"current_time"`
	FrameRate   float64   `yaml:"frame_rate,omitempty"`
	StepSize    float64   `yaml:"step_size,omitempty"`
	Frames      []string  `yaml:"frames"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// ManifestPath returns the manifest location for a bake output location.
func ManifestPath(output string) string {
	return output + ManifestSuffix
}

// SeekPolicy parses the manifest's policy field.
func (m *Manifest) SeekPolicy() (SeekPolicy, error) {
	return ParseSeekPolicy(m.Policy)
}

// Validate checks that the manifest describes a playable sequence.
func (m *Manifest) Validate() error {
	if _, err := m.SeekPolicy(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Duration < 0 {
		return fmt.Errorf("%w: negative duration %g", ErrInvalidManifest, m.Duration)
	}
	if len(m.Frames) > 1 && m.Duration == 0 {
		return fmt.Errorf("%w: %d frames with zero duration", ErrInvalidManifest, len(m.Frames))
	}
	return nil
}

// Sequence returns the frame ids as a playable sequence.
func (m *Manifest) Sequence() Sequence[string] {
	frames := make([]string, len(m.Frames))
	copy(frames, m.Frames)
	return Sequence[string]{Frames: frames, Duration: m.Duration}
}

// Save writes the manifest to path via a temporary file and rename, so
// readers never observe a half-written manifest.
func (m *Manifest) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadManifest reads and validates a manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
