// Package assets collects the artifacts produced by a build cycle and commits them to disk.
package assets

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
	"github.com/static-dev/contentful/internal/fileutils"
)

// Set is a set of named assets. It is safe for concurrent use.
type Set struct {
	mu     sync.Mutex
	assets map[string][]byte
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{assets: make(map[string][]byte)}
}

// Add registers content under name, replacing any previous asset of the same name.
func (s *Set) Add(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[name]; ok {
		slog.Warn("Asset registered twice, keeping the last one", "asset", name)
	}
	s.assets[name] = content
}

// Get returns the content of the asset name.
func (s *Set) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.assets[name]
	return c, ok
}

// Names returns the sorted asset names.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.assets))
	for n := range s.assets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of assets.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// Commit writes every asset to dir on fs. Asset names must be relative paths staying inside dir.
//
// Each asset is written atomically. A failing asset does not prevent the others from being written,
// and all errors are returned joined.
func (s *Set) Commit(fs afero.Fs, dir string) error {
	var errs []error
	for _, name := range s.Names() {
		content, _ := s.Get(name)

		p, err := fileutils.LocalPath(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("asset %q: %v", name, err))
			continue
		}
		if err := fileutils.AtomicWrite(fs, filepath.Join(dir, p), content); err != nil {
			errs = append(errs, fmt.Errorf("asset %q: %v", name, err))
			continue
		}
		slog.Debug("Wrote asset", "asset", name, "dir", dir)
	}
	return errors.Join(errs...)
}
