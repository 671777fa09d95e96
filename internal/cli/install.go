package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Install an extension from the catalog",
	Long: `Download an extension from the catalog and install it.

The package is verified against its embedded signature before it is
installed. Extensions signed by a key that is not trusted yet are installed
but not loaded; see 'trust add'.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	pkgName := args[0]

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

	if slices.ContainsFunc(snap.Installed, func(e extension.Installed) bool { return e.PkgName == pkgName }) {
		return fmt.Errorf("%s is already installed; use '%s update %s'", pkgName, cmd.Root().Name(), pkgName)
	}
	i := slices.IndexFunc(snap.Available, func(e extension.Available) bool { return e.PkgName == pkgName })
	if i < 0 {
		return fmt.Errorf("%s not found in catalog", pkgName)
	}
	ext := snap.Available[i]

	steps, err := a.reg.InstallExtension(ctx, ext)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Installing %s %s\n", Bold(ext.Name), Faint(ext.VersionName))
	if err := followSteps(cmd.OutOrStdout(), ext.Name, steps); err != nil {
		return withCause(err, a.inst.LastError(pkgName))
	}
	return nil
}

// followSteps prints the steps of one pipeline until it ends.
func followSteps(w io.Writer, name string, steps <-chan extension.InstallStep) error {
	last := extension.StepIdle
	for step := range steps {
		last = step
		fmt.Fprintf(w, "  %s %s\n", name, stepLabel(step))
	}
	switch last {
	case extension.StepInstalled:
		return nil
	case extension.StepError:
		return fmt.Errorf("installing %s failed", name)
	default:
		return fmt.Errorf("installing %s: %w", name, context.Canceled)
	}
}

func withCause(err, cause error) error {
	if cause == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", err, cause)
}
