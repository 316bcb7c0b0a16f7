package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Faultbox/flipbake/pkg/grf"
)

// ErrNotFound is returned when no archive or directory has the file.
var ErrNotFound = errors.New("asset not found")

// Loader reads source files from GRF archives, falling back to disk.
type Loader struct {
	archives []*grf.Archive
	dirs     []string
	cache    *Cache
	mu       sync.RWMutex
}

// NewLoader creates a loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{cache: NewCache()}
}

// AddArchive opens a GRF archive. Archives added later take priority.
func (l *Loader) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	l.mu.Lock()
	l.archives = append(l.archives, archive)
	l.mu.Unlock()
	return nil
}

// AddDir adds a directory searched after every archive.
func (l *Loader) AddDir(dir string) {
	l.mu.Lock()
	l.dirs = append(l.dirs, dir)
	l.mu.Unlock()
}

// Load returns the contents of path. Archives are searched newest first,
// then directories in the order added, then path itself on disk.
func (l *Loader) Load(path string) ([]byte, error) {
	key := grf.NormalizePath(path)
	if data, ok := l.cache.Get(key); ok {
		return data, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.archives) - 1; i >= 0; i-- {
		data, err := l.archives[i].Read(path)
		if err == nil {
			l.cache.Set(key, data)
			return data, nil
		}
		if !errors.Is(err, grf.ErrNotFound) {
			return nil, err
		}
	}

	candidates := make([]string, 0, len(l.dirs)+1)
	for _, dir := range l.dirs {
		candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(path)))
	}
	candidates = append(candidates, path)
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err == nil {
			l.cache.Set(key, data)
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Search lists archive entries ending in ext whose path contains pattern or
// whose base name matches it as a glob. An empty pattern matches everything.
// Names are normalized, deduplicated across archives and sorted.
func (l *Loader) Search(pattern, ext string) []string {
	pattern = strings.ToLower(pattern)
	ext = strings.ToLower(ext)

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, archive := range l.archives {
		for _, f := range archive.List() {
			if seen[f] || !strings.HasSuffix(f, ext) {
				continue
			}
			if pattern != "" {
				matched, _ := filepath.Match(pattern, filepath.Base(f))
				if !matched && !strings.Contains(f, pattern) {
					continue
				}
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Close closes all archives and clears the cache.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, archive := range l.archives {
		errs = append(errs, archive.Close())
	}
	l.archives = nil
	l.cache.Clear()
	return errors.Join(errs...)
}

// Stats returns cache hits and misses.
func (l *Loader) Stats() (hits, misses int) {
	return l.cache.Stats()
}

// Cache is an in-memory cache of loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear empties the cache and resets its statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
