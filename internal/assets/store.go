// Package assets persists baked frames as glTF files and loads source models
// from GRF archives or disk.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/flipbake/internal/mesh"
)

// FrameStore writes frames as .glb files. Create stages each file in a
// hidden directory next to the output; Flush moves every staged file into
// place, so a bake that never flushes leaves no visible frames behind.
// Nothing touches the disk before the first Create.
type FrameStore struct {
	log *zap.Logger

	mu      sync.Mutex
	dir     string
	staging string
	staged  []stagedFrame
}

type stagedFrame struct {
	tmp   string
	final string
}

// NewFrameStore creates a store. A nil logger discards output.
func NewFrameStore(log *zap.Logger) *FrameStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FrameStore{log: log}
}

// FramePath returns the file a frame id is stored in.
func FramePath(id string) string {
	return filepath.FromSlash(id) + FrameExt
}

// Writable checks that the output directory exists or can be created under
// its nearest existing ancestor, and remembers it for Create.
func (s *FrameStore) Writable(output string) error {
	dir := filepath.Dir(filepath.FromSlash(output))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging != "" {
		return fmt.Errorf("store already staging into %s", s.staging)
	}
	if err := creatableDir(dir); err != nil {
		return err
	}
	s.dir = dir
	return nil
}

func creatableDir(dir string) error {
	for d := dir; ; {
		info, err := os.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", d)
			}
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(d)
		if parent == d {
			return err
		}
		d = parent
	}
}

// stage creates the output and staging directories on first use.
func (s *FrameStore) stage() error {
	if s.staging != "" {
		return nil
	}
	if s.dir == "" {
		return errors.New("store is not staging; call Writable first")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(s.dir, ".flipbake-")
	if err != nil {
		return err
	}
	s.staging = staging
	return nil
}

// Exists reports whether the frame file is already on disk.
func (s *FrameStore) Exists(id string) bool {
	_, err := os.Stat(FramePath(id))
	return err == nil
}

// Create encodes m into the staging directory and returns the path it will
// have after Flush.
func (s *FrameStore) Create(id string, m *mesh.Mesh) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stage(); err != nil {
		return "", err
	}

	final := FramePath(id)
	tmp := filepath.Join(s.staging, filepath.Base(final))
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := EncodeFrame(f, m); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	s.staged = append(s.staged, stagedFrame{tmp: tmp, final: final})
	s.log.Debug("staged frame", zap.String("id", id), zap.String("path", tmp))
	return final, nil
}

// Flush moves every staged frame into place and removes the staging
// directory.
func (s *FrameStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.staged {
		if err := os.Rename(f.tmp, f.final); err != nil {
			return fmt.Errorf("committing %s: %w", f.final, err)
		}
	}
	s.log.Info("committed frames", zap.Int("count", len(s.staged)))
	s.staged = nil
	return s.reset()
}

// Discard drops staged frames without committing them.
func (s *FrameStore) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.staged) > 0 {
		s.log.Warn("discarding staged frames", zap.Int("count", len(s.staged)))
	}
	s.staged = nil
	return s.reset()
}

func (s *FrameStore) reset() error {
	s.dir = ""
	if s.staging == "" {
		return nil
	}
	err := os.RemoveAll(s.staging)
	s.staging = ""
	return err
}
