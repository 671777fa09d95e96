package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/registry"
	"github.com/spf13/cobra"
)

var (
	watchRefresh  bool
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().BoolVar(&watchRefresh, "refresh", true, "Fetch the catalog on start")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", registry.DefaultDebounce, "How long changes must settle before redrawing")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the extension list and follow package changes",
	Long: `Print the combined extension list and reprint it whenever an extension is
installed, updated, removed or trusted, including changes made by other
extmgr processes. Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		go a.drainErrors(ctx)

		view := a.reg.View(ctx, watchDebounce)
		if watchRefresh {
			go func() {
				_ = a.reg.FindAvailableExtensions(ctx)
			}()
		}

		for items := range view {
			fmt.Fprintln(cmd.OutOrStdout(), Faint(time.Now().Format(time.TimeOnly)))
			if err := renderItems(cmd.OutOrStdout(), items); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

// renderItems prints the combined view grouped by list.
func renderItems(w io.Writer, items []registry.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No extensions.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	kind := registry.ItemKind(-1)
	for _, it := range items {
		if it.Kind != kind {
			kind = it.Kind
			fmt.Fprintf(tw, "%s\n", Bold(sectionTitle(kind)))
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", it.Name(), itemVersion(it), itemLanguage(it), itemStatus(it))
	}
	return tw.Flush()
}

func sectionTitle(kind registry.ItemKind) string {
	switch kind {
	case registry.ItemInstalled:
		return "Installed"
	case registry.ItemUntrusted:
		return "Untrusted"
	default:
		return "Available"
	}
}

func itemVersion(it registry.Item) string {
	switch it.Kind {
	case registry.ItemInstalled:
		return it.Installed.VersionName
	case registry.ItemUntrusted:
		return it.Untrusted.VersionName
	default:
		return it.Available.VersionName
	}
}

func itemLanguage(it registry.Item) string {
	switch it.Kind {
	case registry.ItemInstalled:
		return extension.LangDisplayName(it.Installed.Lang)
	case registry.ItemUntrusted:
		return extension.LangDisplayName(extension.LangFromPackage(it.Untrusted.PkgName))
	default:
		return extension.LangDisplayName(it.Available.Lang)
	}
}

func itemStatus(it registry.Item) string {
	if it.Step != extension.StepIdle {
		return stepLabel(it.Step)
	}
	switch {
	case it.Kind == registry.ItemInstalled && it.Installed.HasUpdate:
		return Warning("update available")
	case it.Kind == registry.ItemUntrusted:
		return Error("untrusted")
	default:
		return ""
	}
}
