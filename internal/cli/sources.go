package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/source"
	"github.com/spf13/cobra"
)

var sourcesJSON bool

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the sources provided by loaded extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}

		entries := sourceEntries(a.sources.List())
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sources loaded.")
			return nil
		}
		if sourcesJSON {
			return printJSON(cmd, entries)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tCAPABILITIES")
		for _, e := range entries {
			caps := strings.Join(e.Capabilities, ",")
			if caps == "" {
				caps = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.Language, caps)
		}
		return w.Flush()
	},
}

// sourceEntry represents a live source for display.
type sourceEntry struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Lang         string   `json:"lang,omitempty"`
	Language     string   `json:"language"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func sourceEntries(sources []source.Source) []sourceEntry {
	entries := make([]sourceEntry, 0, len(sources))
	for _, src := range sources {
		e := sourceEntry{ID: src.ID(), Name: src.Name()}
		if cs, ok := src.(source.CatalogueSource); ok {
			e.Lang = cs.Lang()
		}
		e.Language = extension.LangDisplayName(e.Lang)
		if _, ok := src.(source.Configurable); ok {
			e.Capabilities = append(e.Capabilities, "configurable")
		}
		if _, ok := src.(source.LoginCapable); ok {
			e.Capabilities = append(e.Capabilities, "login")
		}
		entries = append(entries, e)
	}
	return entries
}
