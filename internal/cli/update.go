package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/spf13/cobra"
)

var updateAll bool

func init() {
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "Update every extension with a newer catalog version")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [package]",
	Short: "Update installed extensions",
	Long: `Fetch the catalog and install newer versions of installed extensions.

  extmgr update <package>   # update one extension
  extmgr update --all       # update everything with a newer version`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !updateAll {
			return errors.New("specify a package or --all")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		go a.drainErrors(ctx)

		if err := a.reg.FindAvailableExtensions(ctx); err != nil {
			return fmt.Errorf("fetching catalog: %w", err)
		}
		snap, err := a.snapshot()
		if err != nil {
			return err
		}

		targets, err := updateTargets(snap.Installed, args)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All extensions are up to date.")
			return nil
		}

		var errs []error
		for _, ext := range targets {
			steps, err := a.reg.UpdateExtension(ctx, ext)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updating %s %s\n", Bold(ext.Name), Faint(ext.VersionName))
			if err := followSteps(cmd.OutOrStdout(), ext.Name, steps); err != nil {
				errs = append(errs, withCause(err, a.inst.LastError(ext.PkgName)))
			}
		}
		return errors.Join(errs...)
	},
}

// updateTargets picks the extensions to update: the named one, or all with
// an update when no name is given.
func updateTargets(installed []extension.Installed, args []string) ([]extension.Installed, error) {
	if len(args) == 0 {
		var out []extension.Installed
		for _, ext := range installed {
			if ext.HasUpdate {
				out = append(out, ext)
			}
		}
		return out, nil
	}

	for _, ext := range installed {
		if ext.PkgName != args[0] {
			continue
		}
		if !ext.HasUpdate {
			return nil, nil
		}
		return []extension.Installed{ext}, nil
	}
	return nil, fmt.Errorf("%s is not installed", args[0])
}
