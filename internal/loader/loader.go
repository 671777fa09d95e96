package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/manifest"
	"github.com/sourcekit/extmgr/internal/pkghost"
	"github.com/sourcekit/extmgr/internal/runtime"
	"github.com/sourcekit/extmgr/internal/source"
)

// PackageSource lists the packages installed on the host.
type PackageSource interface {
	List() ([]*pkghost.Package, error)
	Get(pkgName string) (*pkghost.Package, error)
}

// TrustChecker answers whether a signer hash has been approved.
type TrustChecker interface {
	Contains(hash string) bool
}

// Loader loads extension packages.
type Loader struct {
	host     PackageSource
	trust    TrustChecker
	log      logr.Logger
	libMin   uint64
	libMax   uint64
	dispatch func(name string) runtime.Runtime
}

// Option configures a Loader.
type Option func(*Loader)

// WithLibVersionRange sets the accepted library major versions, inclusive.
func WithLibVersionRange(lo, hi int) Option {
	return func(l *Loader) {
		l.libMin, l.libMax = uint64(max(lo, 0)), uint64(max(hi, lo, 0))
	}
}

// WithRuntimeDispatcher overrides how runtimes are resolved by name.
func WithRuntimeDispatcher(fn func(name string) runtime.Runtime) Option {
	return func(l *Loader) {
		l.dispatch = fn
	}
}

// New returns a Loader reading packages from host.
func New(host PackageSource, trust TrustChecker, log logr.Logger, opts ...Option) *Loader {
	l := &Loader{
		host:     host,
		trust:    trust,
		log:      log.WithName("loader"),
		libMin:   config.DefaultLibVersionMin,
		libMax:   config.DefaultLibVersionMax,
		dispatch: runtime.DispatchRuntime,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll loads every installed extension package concurrently and returns
// one result per extension, in host listing order. Packages that are not
// extensions are left out.
func (l *Loader) LoadAll(ctx context.Context) []extension.LoadResult {
	pkgs, err := l.host.List()
	if err != nil {
		l.log.Error(err, "listing installed packages")
		return nil
	}

	var candidates []*pkghost.Package
	for _, p := range pkgs {
		if p.Manifest.IsExtension() {
			candidates = append(candidates, p)
		}
	}

	results := iter.Map(candidates, func(p **pkghost.Package) extension.LoadResult {
		return l.load(ctx, *p)
	})
	l.log.V(1).Info("scan finished", "packages", len(pkgs), "extensions", len(results))
	return results
}

// LoadOne loads a single package by name.
func (l *Loader) LoadOne(ctx context.Context, pkgName string) extension.LoadResult {
	p, err := l.host.Get(pkgName)
	if err != nil {
		return extension.LoadFailure{PkgName: pkgName, Err: err}
	}
	if !p.Manifest.IsExtension() {
		return extension.LoadFailure{PkgName: pkgName, Err: extension.ErrNotExtension}
	}
	return l.load(ctx, p)
}

func (l *Loader) load(ctx context.Context, p *pkghost.Package) extension.LoadResult {
	log := l.log.WithValues("pkg", p.Name)
	m := p.Manifest

	fail := func(err error) extension.LoadResult {
		log.Error(err, "extension not loaded")
		return extension.LoadFailure{PkgName: p.Name, Err: err}
	}

	major, err := libMajor(m)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", extension.ErrIncompatibleVersion, err))
	}
	if major < l.libMin || major > l.libMax {
		return fail(fmt.Errorf("%w: lib version %d outside %d..%d",
			extension.ErrIncompatibleVersion, major, l.libMin, l.libMax))
	}

	hash := p.SignatureHash()
	if !l.trust.Contains(hash) {
		log.Info("extension signed by an untrusted key", "signature", hash)
		return extension.LoadUntrusted{Extension: extension.Untrusted{
			Name:          m.DisplayName(),
			PkgName:       p.Name,
			VersionName:   m.VersionName,
			VersionCode:   m.VersionCode,
			SignatureHash: hash,
		}}
	}

	result, err := manifest.ValidateFile(filepath.Join(p.Dir, manifest.FileName))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", extension.ErrMalformedExtension, err))
	}
	if !result.Valid {
		return fail(fmt.Errorf("%w: %s", extension.ErrMalformedExtension, result))
	}

	sources, err := l.instantiate(ctx, p)
	if err != nil {
		return fail(err)
	}

	log.V(1).Info("extension loaded", "version", m.VersionName, "sources", len(sources))
	return extension.LoadSuccess{Extension: extension.Installed{
		Name:          m.DisplayName(),
		PkgName:       p.Name,
		VersionName:   m.VersionName,
		VersionCode:   m.VersionCode,
		Lang:          extension.SourcesLang(sources),
		Sources:       sources,
		SignatureHash: hash,
	}}
}

func (l *Loader) instantiate(ctx context.Context, p *pkghost.Package) ([]source.Source, error) {
	entries := p.Manifest.ClassEntries()
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entry points declared", extension.ErrMalformedExtension)
	}

	rt := l.dispatch(p.Manifest.Runtime)
	var sources []source.Source
	for _, class := range entries {
		obj, err := rt.Instantiate(ctx, p.Dir, p.Manifest, class)
		if err != nil {
			return nil, fmt.Errorf("%w: instantiating %s: %w", extension.ErrMalformedExtension, class, err)
		}
		switch v := obj.(type) {
		case source.Source:
			sources = append(sources, v)
		case source.Factory:
			created, err := v.CreateSources()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", extension.ErrMalformedExtension, class, err)
			}
			sources = append(sources, created...)
		default:
			return nil, fmt.Errorf("%w: %s is neither a source nor a factory (%T)",
				extension.ErrMalformedExtension, class, obj)
		}
	}
	return sources, nil
}

func libMajor(m *manifest.Manifest) (uint64, error) {
	raw := m.EffectiveLibVersion()
	if raw == "" {
		return 0, errors.New("no lib version declared")
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing lib version %q: %w", raw, err)
	}
	return v.Major(), nil
}
