package userdata

import (
	"os"
	"path/filepath"

	"github.com/sourcekit/extmgr/internal/config"
)

// Directory and file name constants for the ~/.extmgr layout.
const (
	PackagesDir  = "packages"
	DownloadsDir = "downloads"
	CatalogDir   = "catalog"
	TrustFile    = "trusted.yaml"
)

// Permission constants.
const (
	DirPermSecure  os.FileMode = 0700
	FilePermSecure os.FileMode = 0600
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
	FilePermExec   os.FileMode = 0755
)

// GetPackagesRoot returns the directory holding installed extension packages.
// The packages_dir config key (or EXTMGR_PACKAGES_DIR) overrides the default
// ~/.extmgr/packages.
func GetPackagesRoot() string {
	if v := config.Current().PackagesDir; v != "" {
		return v
	}
	return filepath.Join(config.Dir(), PackagesDir)
}

// GetDownloadsRoot returns the spool directory for in-flight downloads.
func GetDownloadsRoot() string {
	if v := config.Current().DownloadsDir; v != "" {
		return v
	}
	return filepath.Join(config.Dir(), DownloadsDir)
}

// GetTrustFilePath returns the path of the trusted-signature store.
func GetTrustFilePath() string {
	if v := config.Current().TrustFile; v != "" {
		return v
	}
	return filepath.Join(config.Dir(), TrustFile)
}

// GetCatalogDir returns the directory holding the catalog freshness marker.
func GetCatalogDir() string {
	return filepath.Join(config.Dir(), CatalogDir)
}
