// Package receiver bridges host package lifecycle events to the extension
// registry: additions and replacements are loaded and reported, removals are
// reported without loading.
package receiver

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/pkghost"
)

// Listener receives the outcome of package events.
type Listener interface {
	OnExtensionInstalled(ext extension.Installed)
	OnExtensionUpdated(ext extension.Installed)
	OnExtensionUntrusted(ext extension.Untrusted)
	OnExtensionUninstalled(pkgName string)
}

// PackageLoader loads a single package.
type PackageLoader interface {
	LoadOne(ctx context.Context, pkgName string) extension.LoadResult
}

// Receiver translates events into listener callbacks.
type Receiver struct {
	loader   PackageLoader
	listener Listener
	log      logr.Logger
}

// New returns a Receiver.
func New(loader PackageLoader, listener Listener, log logr.Logger) *Receiver {
	return &Receiver{loader: loader, listener: listener, log: log.WithName("receiver")}
}

// Run processes events in order until ctx is done or events is closed.
func (r *Receiver) Run(ctx context.Context, events <-chan pkghost.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event.
func (r *Receiver) Handle(ctx context.Context, ev pkghost.Event) {
	log := r.log.WithValues("pkg", ev.PkgName, "event", ev.Kind.String())

	switch ev.Kind {
	case pkghost.EventAdded:
		if ev.Replacing {
			return
		}
		r.load(ctx, log, ev.PkgName, r.listener.OnExtensionInstalled)
	case pkghost.EventReplaced:
		r.load(ctx, log, ev.PkgName, r.listener.OnExtensionUpdated)
	case pkghost.EventRemoved:
		if ev.Replacing {
			return
		}
		log.V(1).Info("extension removed")
		r.listener.OnExtensionUninstalled(ev.PkgName)
	}
}

func (r *Receiver) load(ctx context.Context, log logr.Logger, pkgName string, onSuccess func(extension.Installed)) {
	switch res := r.loader.LoadOne(ctx, pkgName).(type) {
	case extension.LoadSuccess:
		onSuccess(res.Extension)
	case extension.LoadUntrusted:
		r.listener.OnExtensionUntrusted(res.Extension)
	case extension.LoadFailure:
		if errors.Is(res.Err, extension.ErrNotExtension) {
			log.V(1).Info("ignoring non-extension package")
			return
		}
		log.Error(res.Err, "loading changed package")
	}
}
