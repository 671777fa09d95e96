package cli

import (
	"fmt"
	"io"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

// versionReport is what `version` prints: the build plus the extension
// library range this installation accepts.
type versionReport struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Date       string `json:"date"`
	LibMin     int    `json:"lib_version_min"`
	LibMax     int    `json:"lib_version_max"`
	CatalogURL string `json:"catalog_url"`
}

func newVersionReport(s config.Settings) versionReport {
	return versionReport{
		Version:    buildVersion,
		Commit:     buildCommit,
		Date:       buildDate,
		LibMin:     s.LibVersionMin,
		LibMax:     s.LibVersionMax,
		CatalogURL: s.CatalogURL,
	}
}

func printVersion(w io.Writer, r versionReport) {
	fmt.Fprintf(w, "%s version %s (commit: %s, built: %s)\n", branding.CLIName(), r.Version, r.Commit, r.Date)
	if r.LibMin == r.LibMax {
		fmt.Fprintf(w, "extension library: %d.x\n", r.LibMin)
	} else {
		fmt.Fprintf(w, "extension library: %d.x to %d.x\n", r.LibMin, r.LibMax)
	}
	fmt.Fprintf(w, "catalog: %s\n", r.CatalogURL)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, buildVersion)
			return nil
		}

		report := newVersionReport(config.Current())
		if versionJSON {
			return printJSON(cmd, report)
		}
		printVersion(out, report)
		return nil
	},
}
