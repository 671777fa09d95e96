package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>",
	Short: "Remove an installed extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkgName := args[0]

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		snap, err := a.snapshot()
		if err != nil {
			return err
		}
		known := slices.ContainsFunc(snap.Installed, func(e extension.Installed) bool { return e.PkgName == pkgName }) ||
			slices.ContainsFunc(snap.Untrusted, func(e extension.Untrusted) bool { return e.PkgName == pkgName })
		if !known {
			return fmt.Errorf("%s is not installed", pkgName)
		}

		if err := a.reg.UninstallExtension(ctx, pkgName); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", pkgName)
		return nil
	},
}
