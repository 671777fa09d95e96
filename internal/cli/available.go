package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/spf13/cobra"
)

var (
	availableLang string
	availableJSON bool
)

var availableCmd = &cobra.Command{
	Use:   "available [query]",
	Short: "List catalog extensions that are not installed",
	Long: `Fetch the extension catalog and list the entries that are neither installed
nor waiting for trust.

The query matches against extension names and package names (case-insensitive
substring). Use --lang to filter by language code (e.g. en, ja, all).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAvailable,
}

func init() {
	availableCmd.Flags().StringVar(&availableLang, "lang", "", "Filter by language code")
	availableCmd.Flags().BoolVar(&availableJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(availableCmd)
}

// availableEntry represents a catalog entry for display.
type availableEntry struct {
	Name     string `json:"name"`
	Package  string `json:"package"`
	Version  string `json:"version"`
	Code     int    `json:"version_code"`
	Lang     string `json:"lang"`
	Language string `json:"language"`
	Artifact string `json:"artifact"`
}

func runAvailable(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	if err := a.reg.FindAvailableExtensions(ctx); err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}
	snap, err := a.snapshot()
	if err != nil {
		return err
	}

	var entries []availableEntry
	for _, ext := range snap.Available {
		if !matchesAvailable(ext, query, availableLang) {
			continue
		}
		entries = append(entries, availableEntry{
			Name:     ext.Name,
			Package:  ext.PkgName,
			Version:  ext.VersionName,
			Code:     ext.VersionCode,
			Lang:     ext.Lang,
			Language: extension.LangDisplayName(ext.Lang),
			Artifact: ext.APKName,
		})
	}
	sortAvailable(entries)

	if len(entries) == 0 {
		msg := "No extensions available"
		if query != "" {
			msg += fmt.Sprintf(" matching %q", query)
		}
		if availableLang != "" {
			msg += fmt.Sprintf(" with --lang=%s", availableLang)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}

	if availableJSON {
		return printJSON(cmd, entries)
	}
	return printAvailableTable(cmd, entries)
}

// matchesAvailable returns true if the catalog entry matches all provided
// filters.
func matchesAvailable(ext extension.Available, query, lang string) bool {
	if lang != "" && !strings.EqualFold(ext.Lang, lang) {
		return false
	}

	// Substring match on name or package.
	if query != "" {
		q := strings.ToLower(query)
		if !strings.Contains(strings.ToLower(ext.Name), q) &&
			!strings.Contains(strings.ToLower(ext.PkgName), q) {
			return false
		}
	}
	return true
}

// sortAvailable groups entries by language display name, then orders them by
// name.
func sortAvailable(entries []availableEntry) {
	slices.SortStableFunc(entries, func(a, b availableEntry) int {
		if c := cmp.Compare(a.Language, b.Language); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

func printAvailableTable(cmd *cobra.Command, entries []availableEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tNAME\tPACKAGE\tVERSION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Language, e.Name, e.Package, e.Version)
	}
	return w.Flush()
}
