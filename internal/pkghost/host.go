package pkghost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/manifest"
)

const (
	stagingPrefix = ".staging-"
	retiredPrefix = ".retired-"
)

// Host manages the packages under a root directory. Installs and uninstalls
// are serialized; reads may run concurrently with them.
type Host struct {
	root string
	log  logr.Logger

	mu     sync.Mutex
	events broadcaster
	known  map[string]string // pkgName to manifest fingerprint, guarded by mu

	wmu       sync.Mutex
	watchers  int
	stopWatch context.CancelFunc
}

// New returns a Host rooted at root.
func New(root string, log logr.Logger) *Host {
	return &Host{root: root, log: log.WithName("pkghost")}
}

// Root returns the packages root directory.
func (h *Host) Root() string { return h.root }

// Subscribe delivers lifecycle events until ctx is done, at which point the
// channel is closed. Slow subscribers hold up Install and Uninstall.
//
// While any subscription is open the root is watched, so packages added,
// replaced or removed by another process are reported as well.
func (h *Host) Subscribe(ctx context.Context) <-chan Event {
	h.retainWatch()
	ch := h.events.subscribe(ctx)
	context.AfterFunc(ctx, h.releaseWatch)
	return ch
}

// List returns the installed packages ordered by name. Directories that do
// not hold a readable package are skipped.
func (h *Host) List() ([]*Package, error) {
	entries, err := os.ReadDir(h.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading packages root: %w", err)
	}

	var pkgs []*Package
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := readPackage(filepath.Join(h.root, e.Name()))
		if err != nil {
			h.log.V(1).Info("skipping unreadable package", "dir", e.Name(), "error", err.Error())
			continue
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

// Get returns one installed package.
func (h *Host) Get(pkgName string) (*Package, error) {
	if !validPackageName(pkgName) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, pkgName)
	}
	dir := filepath.Join(h.root, pkgName)
	if _, err := os.Stat(filepath.Join(dir, manifest.FileName)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pkgName)
		}
		return nil, fmt.Errorf("reading package %s: %w", pkgName, err)
	}
	return readPackage(dir)
}

// Install verifies and installs the package archive at artifactPath,
// replacing an existing installation signed by the same key. It returns the
// installed package name.
func (h *Host) Install(ctx context.Context, artifactPath string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.root, 0755); err != nil {
		return "", fmt.Errorf("creating packages root: %w", err)
	}
	staging, err := os.MkdirTemp(h.root, stagingPrefix)
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := Extract(artifactPath, staging); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := Verify(staging)
	if err != nil {
		return "", err
	}
	m, err := manifest.ParseFile(filepath.Join(staging, manifest.FileName))
	if err != nil {
		return "", err
	}
	name := m.Package
	if !validPackageName(name) {
		return "", fmt.Errorf("invalid package name %q", name)
	}
	log := h.log.WithValues("pkg", name)

	dest := filepath.Join(h.root, name)
	existing, err := readPackage(dest)
	replacing := err == nil
	if replacing && !bytes.Equal(existing.SignerKey, key) {
		return "", fmt.Errorf("%w: %s", ErrSignerMismatch, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !replacing {
		// A leftover directory without a readable package is discarded.
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("clearing %s: %w", dest, err)
		}
		if err := os.Rename(staging, dest); err != nil {
			return "", fmt.Errorf("installing %s: %w", name, err)
		}
		h.remember(name)
		log.Info("package installed", "version", m.VersionName)
		h.events.emit(Event{Kind: EventAdded, PkgName: name})
		return name, nil
	}

	retired := filepath.Join(h.root, retiredPrefix+name)
	_ = os.RemoveAll(retired)
	if err := os.Rename(dest, retired); err != nil {
		return "", fmt.Errorf("retiring %s: %w", name, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		if rbErr := os.Rename(retired, dest); rbErr != nil {
			return "", fmt.Errorf("installing %s: %w (rollback failed: %v)", name, err, rbErr)
		}
		return "", fmt.Errorf("installing %s: %w", name, err)
	}
	if err := os.RemoveAll(retired); err != nil {
		log.Error(err, "removing retired package")
	}

	h.remember(name)
	log.Info("package replaced", "from", existing.Manifest.VersionName, "to", m.VersionName)
	h.events.emit(
		Event{Kind: EventRemoved, PkgName: name, Replacing: true},
		Event{Kind: EventAdded, PkgName: name, Replacing: true},
		Event{Kind: EventReplaced, PkgName: name},
	)
	return name, nil
}

// Uninstall removes an installed package.
func (h *Host) Uninstall(_ context.Context, pkgName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.Get(pkgName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		// Remove broken installs anyway.
		h.log.V(1).Info("removing unreadable package", "pkg", pkgName, "error", err.Error())
	}
	if err := os.RemoveAll(filepath.Join(h.root, pkgName)); err != nil {
		return fmt.Errorf("removing %s: %w", pkgName, err)
	}

	delete(h.known, pkgName)
	h.log.Info("package removed", "pkg", pkgName)
	h.events.emit(Event{Kind: EventRemoved, PkgName: pkgName})
	return nil
}
