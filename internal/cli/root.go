package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/catalog"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/userdata"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs, updates and removes signed extension packages
published in a remote catalog, and keeps track of the sources they provide.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()

		// Catalog freshness hint for commands that rely on it (no network).
		switch cmd.Name() {
		case "list", "update":
			s := config.Current()
			if catalog.IsStale(userdata.GetCatalogDir(), s.CatalogMaxAge) {
				fmt.Fprintln(cmd.ErrOrStderr(), Faint(fmt.Sprintf(
					"Catalog not fetched in the last %s. Run '%s available' to refresh it.",
					s.CatalogMaxAge, branding.CLIName())))
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
