package extension

import "github.com/sourcekit/extmgr/internal/source"

// Installed is an extension package present on the host whose sources have
// been instantiated.
type Installed struct {
	Name          string
	PkgName       string
	VersionName   string
	VersionCode   int
	Lang          string
	Sources       []source.Source
	HasUpdate     bool
	SignatureHash string
}

// Available is an entry of the remote catalog.
type Available struct {
	Name        string
	PkgName     string
	VersionName string
	VersionCode int
	Lang        string
	APKName     string
	SHA256      string
}

// Untrusted is an installed package whose signer has not been approved.
// Its code is never loaded.
type Untrusted struct {
	Name          string
	PkgName       string
	VersionName   string
	VersionCode   int
	SignatureHash string
}

// MarkUpdates returns a copy of installed with HasUpdate recomputed against
// the catalog. Packages absent from the catalog never have an update.
func MarkUpdates(installed []Installed, available []Available) []Installed {
	byPkg := make(map[string]Available, len(available))
	for _, a := range available {
		byPkg[a.PkgName] = a
	}
	out := make([]Installed, len(installed))
	for i, ext := range installed {
		a, ok := byPkg[ext.PkgName]
		ext.HasUpdate = ok && a.VersionCode > ext.VersionCode
		out[i] = ext
	}
	return out
}

// FilterAvailable drops catalog entries whose package is already installed or
// untrusted, preserving order.
func FilterAvailable(available []Available, installed []Installed, untrusted []Untrusted) []Available {
	present := make(map[string]struct{}, len(installed)+len(untrusted))
	for _, ext := range installed {
		present[ext.PkgName] = struct{}{}
	}
	for _, ext := range untrusted {
		present[ext.PkgName] = struct{}{}
	}
	out := make([]Available, 0, len(available))
	for _, a := range available {
		if _, ok := present[a.PkgName]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}
