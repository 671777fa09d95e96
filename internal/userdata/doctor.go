package userdata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/config"
	"github.com/sourcekit/extmgr/internal/platform"
	"github.com/sourcekit/extmgr/internal/trust"
)

// CheckUserdata validates the ~/.extmgr layout and permissions. When fix is
// true, it attempts to repair issues. It returns the number of problems left
// unfixed.
func CheckUserdata(w io.Writer, fix bool) (int, error) {
	root := config.Dir()
	fmt.Fprintln(w, "Home directory check:")

	if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", root)
		if !fix {
			fmt.Fprintf(w, "         Run '%s init' to create\n", branding.CLIName())
			return 1, nil
		}
		fmt.Fprintln(w, "  [FIX ] Running init...")
		if initErr := InitGlobal(w); initErr != nil {
			return 1, fmt.Errorf("auto-fix init: %w", initErr)
		}
		return 0, nil
	}
	fmt.Fprintf(w, "  [ OK ] %s exists\n", root)

	problems := 0
	problems += checkDirWithPerm(w, GetPackagesRoot(), DirPermNormal, fix)
	problems += checkDirWithPerm(w, GetDownloadsRoot(), DirPermSecure, fix)
	problems += checkDirWithPerm(w, GetCatalogDir(), DirPermNormal, fix)
	problems += checkTrustFile(w, GetTrustFilePath(), fix)
	problems += checkLeftovers(w, GetPackagesRoot(), func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), ".")
	}, fix)
	problems += checkLeftovers(w, GetDownloadsRoot(), func(e os.DirEntry) bool {
		return !e.IsDir() && strings.HasSuffix(e.Name(), ".part")
	}, fix)
	return problems, nil
}

func checkDirWithPerm(w io.Writer, path string, expectedPerm os.FileMode, fix bool) int {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", path)
		if !fix {
			return 1
		}
		if mkErr := os.MkdirAll(path, expectedPerm); mkErr != nil {
			fmt.Fprintf(w, "  [FAIL] Could not create %s: %v\n", path, mkErr)
			return 1
		}
		if chErr := platform.Chmod(path, expectedPerm); chErr != nil {
			fmt.Fprintf(w, "  [FAIL] Could not set permissions on %s: %v\n", path, chErr)
			return 1
		}
		fmt.Fprintf(w, "  [FIX ] Created %s with %o\n", path, expectedPerm)
		return 0
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", path, err)
		return 1
	}
	if !info.IsDir() {
		fmt.Fprintf(w, "  [FAIL] %s exists but is not a directory\n", path)
		return 1
	}

	actualPerm := info.Mode().Perm()
	if actualPerm != expectedPerm {
		fmt.Fprintf(w, "  [WARN] %s has permissions %o (expected %o)\n", path, actualPerm, expectedPerm)
		if !fix {
			return 1
		}
		if chErr := platform.Chmod(path, expectedPerm); chErr != nil {
			fmt.Fprintf(w, "  [FAIL] Could not fix permissions on %s: %v\n", path, chErr)
			return 1
		}
		fmt.Fprintf(w, "  [FIX ] Fixed permissions on %s to %o\n", path, expectedPerm)
		return 0
	}
	fmt.Fprintf(w, "  [ OK ] %s (permissions %o)\n", path, actualPerm)
	return 0
}

func checkTrustFile(w io.Writer, path string, fix bool) int {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", path)
		if !fix {
			return 1
		}
		if err := ensureFile(w, path, defaultTrustContent, FilePermSecure); err != nil {
			fmt.Fprintf(w, "  [FAIL] %v\n", err)
			return 1
		}
		return 0
	}

	store, err := trust.Open(path)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s (%d trusted signatures)\n", path, len(store.List()))
	return 0
}

// checkLeftovers reports entries of dir matched by stale, such as staging
// directories or partial downloads left behind by an interrupted run.
func checkLeftovers(w io.Writer, dir string, stale func(os.DirEntry) bool, fix bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0 // missing dir already reported
	}

	problems := 0
	for _, e := range entries {
		if !stale(e) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		fmt.Fprintf(w, "  [WARN] %s is left over from an interrupted run\n", path)
		if !fix {
			problems++
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			fmt.Fprintf(w, "  [FAIL] Could not remove %s: %v\n", path, err)
			problems++
			continue
		}
		fmt.Fprintf(w, "  [FIX ] Removed %s\n", path)
	}
	return problems
}
