package cli

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/catalog"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/download"
	"github.com/sourcekit/extmgr/internal/installer"
	"github.com/sourcekit/extmgr/internal/loader"
	"github.com/sourcekit/extmgr/internal/logging"
	"github.com/sourcekit/extmgr/internal/pkghost"
	"github.com/sourcekit/extmgr/internal/registry"
	"github.com/sourcekit/extmgr/internal/source"
	"github.com/sourcekit/extmgr/internal/trust"
	"github.com/sourcekit/extmgr/internal/userdata"
	"github.com/spf13/cobra"
)

// app is the wired component graph shared by the commands that need the
// registry.
type app struct {
	settings config.Settings
	log      logr.Logger
	trust    *trust.Store
	host     *pkghost.Host
	inst     *installer.Installer
	sources  *source.Directory
	reg      *registry.Registry
}

// newApp wires every component and starts the registry. The registry stops
// when ctx is done.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	s := config.Current()
	log := logging.New(cmd.ErrOrStderr(), max(s.LogVerbosity, verbosity))

	store, err := trust.Open(userdata.GetTrustFilePath())
	if err != nil {
		return nil, fmt.Errorf("opening trust store: %w", err)
	}

	host := pkghost.New(userdata.GetPackagesRoot(), log)
	dl := download.New(userdata.GetDownloadsRoot(), log)
	cat := catalog.New(s.CatalogURL, log, catalog.WithFreshnessMarker(userdata.GetCatalogDir()))
	ld := loader.New(host, store, log, loader.WithLibVersionRange(s.LibVersionMin, s.LibVersionMax))
	inst := installer.New(dl, host, log,
		installer.WithTimeout(s.InstallTimeout),
		installer.WithPollInterval(s.PollInterval),
	)
	dir := source.NewDirectory()

	reg := registry.New(registry.Deps{
		Loader:    ld,
		Catalog:   cat,
		Installer: inst,
		Trust:     store,
		Events:    host,
		Sources:   dir,
	}, log)
	if err := reg.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting registry: %w", err)
	}

	return &app{
		settings: s,
		log:      log,
		trust:    store,
		host:     host,
		inst:     inst,
		sources:  dir,
		reg:      reg,
	}, nil
}

// snapshot returns the registry lists, failing the command if the registry
// has stopped.
func (a *app) snapshot() (registry.Snapshot, error) {
	snap, err := a.reg.Snapshot()
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("reading registry: %w", err)
	}
	return snap, nil
}

// drainErrors logs registry error events until ctx is done.
func (a *app) drainErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-a.reg.Errors():
			a.log.Error(err, "registry")
		}
	}
}
