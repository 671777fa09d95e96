package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/catalog"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/pkghost"
	"github.com/sourcekit/extmgr/internal/receiver"
	"github.com/sourcekit/extmgr/internal/source"
	"github.com/sourcekit/extmgr/internal/stream"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("registry not started")

// ErrNotInCatalog is returned when an update is requested for a package the
// catalog does not offer.
var ErrNotInCatalog = errors.New("package not in catalog")

// Loader loads installed packages.
type Loader interface {
	LoadAll(ctx context.Context) []extension.LoadResult
	LoadOne(ctx context.Context, pkgName string) extension.LoadResult
}

// Catalog fetches the remote catalog.
type Catalog interface {
	FetchCatalog(ctx context.Context) ([]extension.Available, error)
	BaseURL() string
}

// Installer runs download and install pipelines.
type Installer interface {
	InstallOrUpdate(ctx context.Context, pkgName, title, url, sha256 string) <-chan extension.InstallStep
	Complete(pkgName string)
	LastError(pkgName string) error
	Uninstall(ctx context.Context, pkgName string) error
}

// TrustStore persists trusted signature hashes.
type TrustStore interface {
	Add(hash string) error
}

// EventSource delivers host package lifecycle events.
type EventSource interface {
	Subscribe(ctx context.Context) <-chan pkghost.Event
}

// SourceDirectory is where sources of installed extensions are published.
type SourceDirectory interface {
	Register(s source.Source)
	Unregister(s source.Source)
}

// Deps are the collaborators of a Registry.
type Deps struct {
	Loader    Loader
	Catalog   Catalog
	Installer Installer
	Trust     TrustStore
	Events    EventSource
	Sources   SourceDirectory
}

// state is only touched from the actor goroutine.
type state struct {
	installed []extension.Installed
	available []extension.Available
	untrusted []extension.Untrusted
	steps     map[string]extension.InstallStep
	// owners maps a package to the track call whose pipeline currently
	// drives its step.
	owners map[string]uint64
	seq    uint64
}

// Registry is the extension registry.
type Registry struct {
	deps Deps
	log  logr.Logger

	cmds    chan func(*state)
	stopped chan struct{}
	errs    chan error

	startOnce sync.Once
	started   chan struct{}

	installed *stream.Publisher[[]extension.Installed]
	available *stream.Publisher[[]extension.Available]
	untrusted *stream.Publisher[[]extension.Untrusted]
	steps     *stream.Publisher[map[string]extension.InstallStep]
}

// New returns a Registry. Call Start before using it.
func New(deps Deps, log logr.Logger) *Registry {
	return &Registry{
		deps:      deps,
		log:       log.WithName("registry"),
		cmds:      make(chan func(*state)),
		stopped:   make(chan struct{}),
		errs:      make(chan error, 16),
		started:   make(chan struct{}),
		installed: stream.New[[]extension.Installed](),
		available: stream.NewWithValue[[]extension.Available](nil),
		untrusted: stream.New[[]extension.Untrusted](),
		steps:     stream.NewWithValue(map[string]extension.InstallStep{}),
	}
}

// Start loads every installed package, registers the sources of trusted
// ones and starts following host package events. It returns once the
// initial lists are published. The registry stops when ctx is done.
func (r *Registry) Start(ctx context.Context) error {
	first := false
	r.startOnce.Do(func() { first = true })
	if !first {
		return errors.New("registry already started")
	}
	return r.start(ctx)
}

func (r *Registry) start(ctx context.Context) error {
	go r.loop(ctx)

	// Subscribe before the scan so changes made while it runs are replayed
	// afterwards.
	events := r.deps.Events.Subscribe(ctx)
	results := r.deps.Loader.LoadAll(ctx)

	var installed []extension.Installed
	var untrusted []extension.Untrusted
	for _, res := range results {
		switch res := res.(type) {
		case extension.LoadSuccess:
			installed = append(installed, res.Extension)
		case extension.LoadUntrusted:
			untrusted = append(untrusted, res.Extension)
		case extension.LoadFailure:
			if !errors.Is(res.Err, extension.ErrNotExtension) {
				r.log.Error(res.Err, "loading extension", "pkg", res.PkgName)
			}
		}
	}

	if !r.exec(func(s *state) {
		s.installed = installed
		s.untrusted = untrusted
		for _, ext := range s.installed {
			r.register(ext)
		}
		r.publish(s)
	}) {
		return ctx.Err()
	}
	r.log.V(1).Info("registry started", "installed", len(installed), "untrusted", len(untrusted))

	close(r.started)
	go receiver.New(r.deps.Loader, r, r.log).Run(ctx, events)
	return nil
}

func (r *Registry) loop(ctx context.Context) {
	defer close(r.stopped)
	defer r.closeStreams()

	s := &state{
		steps:  make(map[string]extension.InstallStep),
		owners: make(map[string]uint64),
	}
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.cmds:
			fn(s)
		}
	}
}

func (r *Registry) closeStreams() {
	r.installed.Close()
	r.available.Close()
	r.untrusted.Close()
	r.steps.Close()
}

// exec runs fn on the actor goroutine and waits for it. It reports false when
// the registry has stopped.
func (r *Registry) exec(fn func(s *state)) bool {
	done := make(chan struct{})
	select {
	case r.cmds <- func(s *state) { fn(s); close(done) }:
	case <-r.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-r.stopped:
		return false
	}
}

func (r *Registry) ready() error {
	select {
	case <-r.started:
		return nil
	default:
		return ErrNotStarted
	}
}

// publish emits every list. Called from the actor goroutine only.
func (r *Registry) publish(s *state) {
	r.installed.Publish(slices.Clone(s.installed))
	r.untrusted.Publish(slices.Clone(s.untrusted))
	r.available.Publish(extension.FilterAvailable(s.available, s.installed, s.untrusted))
}

func (r *Registry) register(ext extension.Installed) {
	for _, src := range ext.Sources {
		r.deps.Sources.Register(src)
	}
}

func (r *Registry) unregister(ext extension.Installed) {
	for _, src := range ext.Sources {
		r.deps.Sources.Unregister(src)
	}
}

func (r *Registry) reportError(err error) {
	select {
	case r.errs <- err:
	default:
		r.log.V(1).Info("dropping error event", "error", err.Error())
	}
}

// Installed streams the installed list.
func (r *Registry) Installed(ctx context.Context) <-chan []extension.Installed {
	return r.installed.Subscribe(ctx)
}

// Available streams catalog entries that are neither installed nor untrusted.
func (r *Registry) Available(ctx context.Context) <-chan []extension.Available {
	return r.available.Subscribe(ctx)
}

// Untrusted streams the untrusted list.
func (r *Registry) Untrusted(ctx context.Context) <-chan []extension.Untrusted {
	return r.untrusted.Subscribe(ctx)
}

// InstallSteps streams the current step of every running pipeline.
func (r *Registry) InstallSteps(ctx context.Context) <-chan map[string]extension.InstallStep {
	return r.steps.Subscribe(ctx)
}

// Errors delivers non-fatal failures. Events are dropped when nobody reads.
func (r *Registry) Errors() <-chan error { return r.errs }

// Snapshot is a consistent copy of the registry lists.
type Snapshot struct {
	Installed []extension.Installed
	Available []extension.Available
	Untrusted []extension.Untrusted
	Steps     map[string]extension.InstallStep
}

// Snapshot returns the current lists. Available is filtered like the
// Available stream.
func (r *Registry) Snapshot() (Snapshot, error) {
	if err := r.ready(); err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if !r.exec(func(s *state) {
		snap = Snapshot{
			Installed: slices.Clone(s.installed),
			Available: extension.FilterAvailable(s.available, s.installed, s.untrusted),
			Untrusted: slices.Clone(s.untrusted),
			Steps:     maps.Clone(s.steps),
		}
	}) {
		return Snapshot{}, ErrNotStarted
	}
	return snap, nil
}

// FindAvailableExtensions refreshes the catalog. On failure the previous
// list is kept and the error is also reported on Errors.
func (r *Registry) FindAvailableExtensions(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	available, err := r.deps.Catalog.FetchCatalog(ctx)
	if err != nil {
		r.reportError(err)
		return err
	}
	r.exec(func(s *state) {
		s.available = available
		s.installed = extension.MarkUpdates(s.installed, s.available)
		r.publish(s)
	})
	return nil
}

// InstallExtension installs a catalog entry. The returned channel mirrors
// the pipeline's steps; the caller must drain it or cancel ctx.
func (r *Registry) InstallExtension(ctx context.Context, ext extension.Available) (<-chan extension.InstallStep, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	url := catalog.ResolveDownloadURL(r.deps.Catalog.BaseURL(), ext)
	return r.track(ctx, ext.PkgName, ext.Name, url, ext.SHA256), nil
}

// UpdateExtension installs the catalog version of an installed extension.
func (r *Registry) UpdateExtension(ctx context.Context, ext extension.Installed) (<-chan extension.InstallStep, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var (
		entry extension.Available
		found bool
	)
	r.exec(func(s *state) {
		i := slices.IndexFunc(s.available, func(a extension.Available) bool { return a.PkgName == ext.PkgName })
		if i >= 0 {
			entry, found = s.available[i], true
		}
	})
	if !found {
		return nil, fmt.Errorf("updating %s: %w", ext.PkgName, ErrNotInCatalog)
	}
	url := catalog.ResolveDownloadURL(r.deps.Catalog.BaseURL(), entry)
	return r.track(ctx, entry.PkgName, entry.Name, url, entry.SHA256), nil
}

func (r *Registry) track(ctx context.Context, pkgName, title, url, sha256 string) <-chan extension.InstallStep {
	var token uint64
	r.exec(func(s *state) {
		s.seq++
		token = s.seq
		s.owners[pkgName] = token
	})
	in := r.deps.Installer.InstallOrUpdate(ctx, pkgName, title, url, sha256)
	out := make(chan extension.InstallStep, 1)

	go func() {
		defer close(out)
		defer r.exec(func(s *state) {
			if s.owners[pkgName] != token {
				return
			}
			delete(s.owners, pkgName)
			delete(s.steps, pkgName)
			r.steps.Publish(maps.Clone(s.steps))
		})

		for step := range in {
			r.exec(func(s *state) {
				if s.owners[pkgName] != token {
					return
				}
				s.steps[pkgName] = step
				r.steps.Publish(maps.Clone(s.steps))
			})
			if step == extension.StepError {
				err := r.deps.Installer.LastError(pkgName)
				if err == nil {
					err = extension.ErrHostInstallFailure
				}
				r.reportError(fmt.Errorf("installing %s: %w", pkgName, err))
			}
			select {
			case out <- step:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// UninstallExtension asks the host to remove pkgName. The lists change once
// the host reports the removal.
func (r *Registry) UninstallExtension(ctx context.Context, pkgName string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.deps.Installer.Uninstall(ctx, pkgName); err != nil {
		r.reportError(err)
		return err
	}
	return nil
}

// TrustSignature trusts hash and reloads every untrusted package signed
// with it. Packages that then load move to the installed list; the rest are
// dropped from the untrusted list.
func (r *Registry) TrustSignature(ctx context.Context, hash string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.deps.Trust.Add(hash); err != nil {
		return fmt.Errorf("trusting signature: %w", err)
	}

	var pending []string
	r.exec(func(s *state) {
		for _, u := range s.untrusted {
			if u.SignatureHash == hash {
				pending = append(pending, u.PkgName)
			}
		}
	})

	for _, pkgName := range pending {
		res := r.deps.Loader.LoadOne(ctx, pkgName)
		r.exec(func(s *state) {
			switch res := res.(type) {
			case extension.LoadSuccess:
				s.untrusted = removeUntrusted(s.untrusted, pkgName)
				r.putInstalled(s, res.Extension)
			case extension.LoadFailure:
				r.log.Error(res.Err, "reloading trusted extension", "pkg", pkgName)
				s.untrusted = removeUntrusted(s.untrusted, pkgName)
			case extension.LoadUntrusted:
				// Signed with a different key than the one listed.
			}
			r.publish(s)
		})
	}
	return nil
}

// putInstalled adds or replaces ext, unregistering the sources of the
// previous version first. Called from the actor goroutine only.
func (r *Registry) putInstalled(s *state, ext extension.Installed) {
	ext.HasUpdate = hasUpdate(ext, s.available)
	if i := slices.IndexFunc(s.installed, byPkg(ext.PkgName)); i >= 0 {
		r.unregister(s.installed[i])
		s.installed[i] = ext
	} else {
		s.installed = append(s.installed, ext)
	}
	r.register(ext)
}

func (r *Registry) dropInstalled(s *state, pkgName string) {
	i := slices.IndexFunc(s.installed, byPkg(pkgName))
	if i < 0 {
		return
	}
	r.unregister(s.installed[i])
	s.installed = slices.Delete(s.installed, i, i+1)
}

func byPkg(pkgName string) func(extension.Installed) bool {
	return func(ext extension.Installed) bool { return ext.PkgName == pkgName }
}

func removeUntrusted(list []extension.Untrusted, pkgName string) []extension.Untrusted {
	return slices.DeleteFunc(list, func(u extension.Untrusted) bool { return u.PkgName == pkgName })
}

func hasUpdate(ext extension.Installed, available []extension.Available) bool {
	for _, a := range available {
		if a.PkgName == ext.PkgName {
			return a.VersionCode > ext.VersionCode
		}
	}
	return false
}
