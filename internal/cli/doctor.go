package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcekit/extmgr/internal/manifest"
	"github.com/sourcekit/extmgr/internal/pkghost"
	"github.com/sourcekit/extmgr/internal/trust"
	"github.com/sourcekit/extmgr/internal/userdata"
	"github.com/spf13/cobra"
)

var (
	checkHome     bool
	checkPackages bool
	checkManifest string
	doctorFix     bool
)

func init() {
	doctorCmd.Flags().BoolVar(&checkHome, "check-home", false, "Verify the home directory layout and permissions")
	doctorCmd.Flags().BoolVar(&checkPackages, "check-packages", false, "Verify signatures and manifests of installed packages")
	doctorCmd.Flags().StringVar(&checkManifest, "check-manifest", "", "Validate a manifest file at the given path")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Repair home directory problems")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the extmgr installation",
	Long:  `Run diagnostic checks on the extmgr home directory and installed packages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// If no specific flag, run all checks.
		if !checkHome && !checkPackages && checkManifest == "" {
			checkHome, checkPackages = true, true
		}

		problems := 0
		if checkHome {
			n, err := userdata.CheckUserdata(out, doctorFix)
			if err != nil {
				return err
			}
			problems += n
		}
		if checkPackages {
			problems += runPackagesCheck(out, userdata.GetPackagesRoot(), userdata.GetTrustFilePath())
		}
		if checkManifest != "" {
			problems += runManifestCheck(out, checkManifest)
		}

		if problems > 0 {
			return fmt.Errorf("%d problem(s) found", problems)
		}
		return nil
	},
}

// runPackagesCheck verifies every package directory under root. Untrusted
// signers are reported but not counted as problems.
func runPackagesCheck(w io.Writer, root, trustPath string) int {
	fmt.Fprintln(w, "Packages check:")

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		fmt.Fprintln(w, "  [INFO] No packages installed")
		return 0
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}

	store, err := trust.Open(trustPath)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}

	problems := 0
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())

		key, err := pkghost.Verify(dir)
		if err != nil {
			fmt.Fprintf(w, "  [FAIL] %s: %v\n", e.Name(), err)
			problems++
			continue
		}
		result, err := manifest.ValidateFile(filepath.Join(dir, manifest.FileName))
		if err != nil {
			fmt.Fprintf(w, "  [FAIL] %s: %v\n", e.Name(), err)
			problems++
			continue
		}
		if !result.Valid {
			fmt.Fprintf(w, "  [FAIL] %s: %s\n", e.Name(), result.String())
			problems++
			continue
		}

		hash := pkghost.SignatureHash(key)
		if !store.Contains(hash) {
			fmt.Fprintf(w, "  [WARN] %s is signed by an untrusted key (%s)\n", e.Name(), hash)
			continue
		}
		fmt.Fprintf(w, "  [ OK ] %s\n", e.Name())
	}
	return problems
}

func runManifestCheck(w io.Writer, path string) int {
	fmt.Fprintln(w, "Manifest check:")
	result, err := manifest.ValidateFile(path)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	if !result.Valid {
		fmt.Fprintf(w, "  [FAIL] %s: %s\n", path, result.String())
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s is valid\n", path)
	return 0
}
