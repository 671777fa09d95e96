package source

import (
	"slices"
	"sync"
)

// Directory is the registry of live sources keyed by id. It is safe for
// concurrent use.
type Directory struct {
	mu      sync.RWMutex
	sources map[int64]Source
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{sources: make(map[int64]Source)}
}

// Register adds s, replacing any source registered under the same id.
func (d *Directory) Register(s Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[s.ID()] = s
}

// Unregister removes s. Unknown sources are ignored.
func (d *Directory) Unregister(s Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.sources[s.ID()]; ok && cur == s {
		delete(d.sources, s.ID())
	}
}

// Get returns the source registered under id.
func (d *Directory) Get(id int64) (Source, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sources[id]
	return s, ok
}

// List returns all registered sources ordered by id.
func (d *Directory) List() []Source {
	d.mu.RLock()
	out := make([]Source, 0, len(d.sources))
	for _, s := range d.sources {
		out = append(out, s)
	}
	d.mu.RUnlock()
	slices.SortFunc(out, func(a, b Source) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return out
}
