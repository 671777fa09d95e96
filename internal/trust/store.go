package trust

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

type fileFormat struct {
	TrustedSignatures []string `yaml:"trusted_signatures"`
}

// Store is a YAML-backed set of trusted signature hashes. It is safe for
// concurrent use; reads never touch the disk after Load.
type Store struct {
	path string

	mu     sync.RWMutex
	hashes map[string]struct{}
}

// NewStore returns an empty store persisted at path. Call Load to read the
// existing file.
func NewStore(path string) *Store {
	return &Store{path: path, hashes: make(map[string]struct{})}
}

// Open creates a store and loads it.
func Open(path string) (*Store, error) {
	s := NewStore(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory set with the file contents. A missing file is
// an empty set.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.hashes = make(map[string]struct{})
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading trust store: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing trust store %s: %w", s.path, err)
	}

	hashes := make(map[string]struct{}, len(f.TrustedSignatures))
	for _, h := range f.TrustedSignatures {
		if h = normalize(h); h != "" {
			hashes[h] = struct{}{}
		}
	}
	s.mu.Lock()
	s.hashes = hashes
	s.mu.Unlock()
	return nil
}

// Contains reports whether hash is trusted.
func (s *Store) Contains(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[normalize(hash)]
	return ok
}

// Add trusts hash and persists the set.
func (s *Store) Add(hash string) error {
	hash = normalize(hash)
	if hash == "" {
		return fmt.Errorf("empty signature hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[hash]; ok {
		return nil
	}
	s.hashes[hash] = struct{}{}
	if err := s.save(); err != nil {
		delete(s.hashes, hash)
		return err
	}
	return nil
}

// Revoke removes hash from the set and persists it. Revoking an unknown hash
// is not an error.
func (s *Store) Revoke(hash string) error {
	hash = normalize(hash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[hash]; !ok {
		return nil
	}
	delete(s.hashes, hash)
	if err := s.save(); err != nil {
		s.hashes[hash] = struct{}{}
		return err
	}
	return nil
}

// List returns the trusted hashes in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.hashes))
	for h := range s.hashes {
		out = append(out, h)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// save writes the set atomically. Callers hold s.mu.
func (s *Store) save() error {
	f := fileFormat{TrustedSignatures: make([]string, 0, len(s.hashes))}
	for h := range s.hashes {
		f.TrustedSignatures = append(f.TrustedSignatures, h)
	}
	slices.Sort(f.TrustedSignatures)

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling trust store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating trust store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".trusted-*.yaml")
	if err != nil {
		return fmt.Errorf("writing trust store: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing trust store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing trust store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing trust store: %w", err)
	}
	return nil
}

func normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
