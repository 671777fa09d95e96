package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/registry"
	"github.com/spf13/cobra"
)

var (
	listJSON    bool
	listRefresh bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed extensions",
	Long: `List installed extensions, including packages whose signer is not trusted yet.

Update availability reflects the last catalog fetched by this process; run
'list --refresh' to fetch the catalog first.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listRefresh, "refresh", false, "Fetch the catalog to detect updates")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed or untrusted extension for display.
type listEntry struct {
	Name      string `json:"name"`
	Package   string `json:"package"`
	Version   string `json:"version"`
	Code      int    `json:"version_code"`
	Language  string `json:"language"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Sources   int    `json:"sources"`
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	if listRefresh {
		if err := a.reg.FindAvailableExtensions(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), Warning("Could not fetch catalog: "+err.Error()))
		}
	}
	snap, err := a.snapshot()
	if err != nil {
		return err
	}

	entries := listEntries(snap)
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extensions installed yet.")
		return nil
	}
	if listJSON {
		return printJSON(cmd, entries)
	}
	return printListTable(cmd, entries)
}

func listEntries(snap registry.Snapshot) []listEntry {
	var entries []listEntry
	for _, ext := range snap.Installed {
		status := "installed"
		if ext.HasUpdate {
			status = "update available"
		}
		entries = append(entries, listEntry{
			Name:      ext.Name,
			Package:   ext.PkgName,
			Version:   ext.VersionName,
			Code:      ext.VersionCode,
			Language:  extension.LangDisplayName(ext.Lang),
			Status:    status,
			Signature: ext.SignatureHash,
			Sources:   len(ext.Sources),
		})
	}
	for _, ext := range snap.Untrusted {
		entries = append(entries, listEntry{
			Name:      ext.Name,
			Package:   ext.PkgName,
			Version:   ext.VersionName,
			Code:      ext.VersionCode,
			Language:  extension.LangDisplayName(extension.LangFromPackage(ext.PkgName)),
			Status:    "untrusted",
			Signature: ext.SignatureHash,
		})
	}
	return entries
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tPACKAGE\tVERSION\tLANGUAGE\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Package, e.Version, e.Language, statusLabel(e.Status))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Status == "untrusted" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s is signed by an untrusted key. Trust it with:\n  %s trust add %s\n",
				e.Package, cmd.Root().Name(), e.Signature)
		}
	}
	return nil
}

func statusLabel(status string) string {
	switch status {
	case "update available":
		return Warning(status)
	case "untrusted":
		return Error(status)
	default:
		return status
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
