package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/download"
	"github.com/sourcekit/extmgr/internal/extension"
)

// Downloader is the background download subsystem.
type Downloader interface {
	Enqueue(req download.Request) (string, error)
	Status(id string) (download.Status, error)
	ResultPath(id string) (string, bool)
	Err(id string) error
	Subscribe(ctx context.Context) <-chan string
	Remove(id string)
}

// PackageInstaller is the host install and removal flow.
type PackageInstaller interface {
	Install(ctx context.Context, artifactPath string) (string, error)
	Uninstall(ctx context.Context, pkgName string) error
}

// Installer runs install pipelines.
type Installer struct {
	dl           Downloader
	host         PackageInstaller
	log          logr.Logger
	timeout      time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	active    map[string]*attempt
	subCancel context.CancelFunc
	lastErr   map[string]error
}

// Option configures an Installer.
type Option func(*Installer)

// WithTimeout sets the ceiling for one attempt.
func WithTimeout(d time.Duration) Option {
	return func(i *Installer) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithPollInterval sets how often download status is polled.
func WithPollInterval(d time.Duration) Option {
	return func(i *Installer) {
		if d > 0 {
			i.pollInterval = d
		}
	}
}

// New returns an Installer.
func New(dl Downloader, host PackageInstaller, log logr.Logger, opts ...Option) *Installer {
	i := &Installer{
		dl:           dl,
		host:         host,
		log:          log.WithName("installer"),
		timeout:      config.DefaultInstallTimeout,
		pollInterval: config.DefaultPollInterval,
		active:       make(map[string]*attempt),
		lastErr:      make(map[string]error),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type attempt struct {
	pkgName string
	ctx     context.Context
	cancel  context.CancelFunc

	// downloadID is guarded by Installer.mu.
	downloadID string

	completed     chan string
	installed     chan struct{}
	installedOnce sync.Once
}

// InstallOrUpdate downloads url and installs it as pkgName. The returned
// channel yields the pipeline's steps and is closed after Installed or
// Error, or without a terminal step when ctx is cancelled or a newer attempt
// for the same package supersedes this one. The caller must drain the
// channel or cancel ctx.
func (i *Installer) InstallOrUpdate(ctx context.Context, pkgName, title, url, sha256 string) <-chan extension.InstallStep {
	out := make(chan extension.InstallStep, 1)

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{
		pkgName:   pkgName,
		ctx:       actx,
		cancel:    cancel,
		completed: make(chan string, 1),
		installed: make(chan struct{}),
	}

	i.mu.Lock()
	if old, ok := i.active[pkgName]; ok {
		old.cancel()
		if old.downloadID != "" {
			i.dl.Remove(old.downloadID)
		}
		i.log.V(1).Info("superseding running attempt", "pkg", pkgName)
	}
	i.active[pkgName] = a
	delete(i.lastErr, pkgName)
	if i.subCancel == nil {
		subCtx, subCancel := context.WithCancel(context.Background())
		i.subCancel = subCancel
		go i.dispatchCompletions(i.dl.Subscribe(subCtx))
	}
	i.mu.Unlock()

	go i.run(a, out, download.Request{URL: url, Title: title, SHA256: sha256})
	return out
}

// Complete marks the running attempt for pkgName as installed. It is called
// once the host reports the package as added or replaced.
func (i *Installer) Complete(pkgName string) {
	i.mu.Lock()
	a, ok := i.active[pkgName]
	i.mu.Unlock()
	if ok {
		a.installedOnce.Do(func() { close(a.installed) })
	}
}

// InFlight reports whether an attempt for pkgName is running.
func (i *Installer) InFlight(pkgName string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.active[pkgName]
	return ok
}

// LastError returns why the most recent attempt for pkgName failed.
func (i *Installer) LastError(pkgName string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr[pkgName]
}

// Uninstall invokes the host removal flow.
func (i *Installer) Uninstall(ctx context.Context, pkgName string) error {
	if err := i.host.Uninstall(ctx, pkgName); err != nil {
		return fmt.Errorf("uninstalling %s: %w", pkgName, err)
	}
	return nil
}

func (i *Installer) dispatchCompletions(ids <-chan string) {
	for id := range ids {
		i.mu.Lock()
		for _, a := range i.active {
			if a.downloadID == id {
				select {
				case a.completed <- id:
				default:
				}
			}
		}
		i.mu.Unlock()
	}
}

func (i *Installer) run(a *attempt, out chan<- extension.InstallStep, req download.Request) {
	log := i.log.WithValues("pkg", a.pkgName)
	step := extension.StepIdle

	emit := func(s extension.InstallStep) bool {
		if s == step {
			return true
		}
		select {
		case out <- s:
			step = s
			return true
		case <-a.ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		log.Error(err, "install failed", "step", step.String())
		i.mu.Lock()
		if i.active[a.pkgName] == a {
			i.lastErr[a.pkgName] = err
		}
		i.mu.Unlock()
		emit(extension.StepError)
	}
	defer i.finish(a, out)

	timeout := time.NewTimer(i.timeout)
	defer timeout.Stop()

	id, err := i.dl.Enqueue(req)
	if err != nil {
		fail(fmt.Errorf("%w: %w", extension.ErrNetworkFailure, err))
		return
	}
	i.mu.Lock()
	a.downloadID = id
	superseded := i.active[a.pkgName] != a
	i.mu.Unlock()
	if superseded {
		return
	}
	if !emit(extension.StepPending) {
		return
	}

	poll := time.NewTicker(i.pollInterval)
	defer poll.Stop()

	installResult := make(chan error, 1)
	handled := false
	onDownloadDone := func() bool {
		if handled {
			return true
		}
		handled = true
		path, ok := i.dl.ResultPath(id)
		if !ok {
			if derr := i.dl.Err(id); derr != nil {
				fail(fmt.Errorf("%w: %w", extension.ErrNetworkFailure, derr))
			} else {
				fail(fmt.Errorf("%w: download produced no artifact", extension.ErrHostInstallFailure))
			}
			return false
		}
		if !emit(extension.StepInstalling) {
			return false
		}
		go func() {
			name, err := i.host.Install(a.ctx, path)
			if err == nil && name != a.pkgName {
				err = fmt.Errorf("artifact contains %s", name)
			}
			installResult <- err
		}()
		return true
	}

	for {
		select {
		case <-a.ctx.Done():
			log.V(1).Info("install cancelled")
			return

		case <-timeout.C:
			fail(fmt.Errorf("%w after %s", extension.ErrTimeout, i.timeout))
			return

		case <-a.installed:
			emit(extension.StepInstalled)
			log.Info("extension installed")
			return

		case <-a.completed:
			if !onDownloadDone() {
				return
			}

		case err := <-installResult:
			if err != nil {
				if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
					return
				}
				fail(fmt.Errorf("%w: %w", extension.ErrHostInstallFailure, err))
				return
			}
			// Wait for the host event to confirm the install.

		case <-poll.C:
			if handled {
				continue
			}
			st, err := i.dl.Status(id)
			if err != nil {
				fail(fmt.Errorf("%w: %w", extension.ErrNetworkFailure, err))
				return
			}
			switch st {
			case download.StatusRunning:
				if !emit(extension.StepDownloading) {
					return
				}
			case download.StatusSuccessful, download.StatusFailed:
				if !onDownloadDone() {
					return
				}
			}
		}
	}
}

// finish releases the in-flight slot, discards the download and closes out.
func (i *Installer) finish(a *attempt, out chan<- extension.InstallStep) {
	i.mu.Lock()
	if i.active[a.pkgName] == a {
		delete(i.active, a.pkgName)
	}
	id := a.downloadID
	if len(i.active) == 0 && i.subCancel != nil {
		i.subCancel()
		i.subCancel = nil
	}
	i.mu.Unlock()

	a.cancel()
	if id != "" {
		i.dl.Remove(id)
	}
	close(out)
}
