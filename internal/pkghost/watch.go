package pkghost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcekit/extmgr/internal/manifest"
)

// settleDelay coalesces the renames of a single install so a replacement
// done by another process is not seen as a removal followed by an add.
const settleDelay = 150 * time.Millisecond

// retainWatch starts watching the root when the first subscriber arrives.
func (h *Host) retainWatch() {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	h.watchers++
	if h.watchers > 1 {
		return
	}

	if err := os.MkdirAll(h.root, 0755); err != nil {
		h.log.Error(err, "creating packages root, changes by other processes will not be seen")
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		h.log.Error(err, "starting watcher, changes by other processes will not be seen")
		return
	}
	if err := w.Add(h.root); err != nil {
		w.Close()
		h.log.Error(err, "watching packages root, changes by other processes will not be seen")
		return
	}

	h.mu.Lock()
	h.known = h.scan()
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	h.stopWatch = cancel
	go h.watch(ctx, w)
}

func (h *Host) releaseWatch() {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	h.watchers--
	if h.watchers == 0 && h.stopWatch != nil {
		h.stopWatch()
		h.stopWatch = nil
	}
}

func (h *Host) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Staging and retired directories are private to an install.
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			settle = time.After(settleDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.log.Error(err, "watching packages root")
		case <-settle:
			settle = nil
			h.reconcile()
		}
	}
}

// reconcile compares the root with the last known state and emits events
// for the differences. Changes made through this Host are already recorded
// in known and produce nothing here.
func (h *Host) reconcile() {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.scan()
	var events []Event
	for name, fp := range current {
		prev, ok := h.known[name]
		switch {
		case !ok:
			events = append(events, Event{Kind: EventAdded, PkgName: name})
		case prev != fp:
			events = append(events,
				Event{Kind: EventRemoved, PkgName: name, Replacing: true},
				Event{Kind: EventAdded, PkgName: name, Replacing: true},
				Event{Kind: EventReplaced, PkgName: name},
			)
		}
	}
	for name := range h.known {
		if _, ok := current[name]; !ok {
			events = append(events, Event{Kind: EventRemoved, PkgName: name})
		}
	}
	h.known = current

	for _, ev := range events {
		h.log.V(1).Info("package changed on disk", "pkg", ev.PkgName, "kind", ev.Kind.String())
	}
	h.events.emit(events...)
}

// scan fingerprints every package under the root. h.mu must be held.
func (h *Host) scan() map[string]string {
	out := make(map[string]string)
	entries, err := os.ReadDir(h.root)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if fp, ok := fingerprint(filepath.Join(h.root, e.Name())); ok {
			out[e.Name()] = fp
		}
	}
	return out
}

// remember records the package installed in dest. h.mu must be held.
func (h *Host) remember(name string) {
	if h.known == nil {
		h.known = make(map[string]string)
	}
	if fp, ok := fingerprint(filepath.Join(h.root, name)); ok {
		h.known[name] = fp
	}
}

func fingerprint(dir string) (string, bool) {
	info, err := os.Stat(filepath.Join(dir, manifest.FileName))
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), true
}
