package registry

import (
	"slices"

	"github.com/sourcekit/extmgr/internal/extension"
)

// OnExtensionInstalled records a newly installed extension and registers its
// sources.
func (r *Registry) OnExtensionInstalled(ext extension.Installed) {
	r.log.V(1).Info("extension installed", "pkg", ext.PkgName, "version", ext.VersionName)
	r.exec(func(s *state) {
		s.untrusted = removeUntrusted(s.untrusted, ext.PkgName)
		r.putInstalled(s, ext)
		r.publish(s)
	})
	r.deps.Installer.Complete(ext.PkgName)
}

// OnExtensionUpdated swaps the sources of the previous version for those of
// ext.
func (r *Registry) OnExtensionUpdated(ext extension.Installed) {
	r.log.V(1).Info("extension updated", "pkg", ext.PkgName, "version", ext.VersionName)
	r.exec(func(s *state) {
		s.untrusted = removeUntrusted(s.untrusted, ext.PkgName)
		r.putInstalled(s, ext)
		r.publish(s)
	})
	r.deps.Installer.Complete(ext.PkgName)
}

// OnExtensionUntrusted records a package whose signer is not trusted. An
// installed version of the same package is unloaded.
func (r *Registry) OnExtensionUntrusted(ext extension.Untrusted) {
	r.log.Info("extension is untrusted", "pkg", ext.PkgName, "signature", ext.SignatureHash)
	r.exec(func(s *state) {
		r.dropInstalled(s, ext.PkgName)
		if i := slices.IndexFunc(s.untrusted, func(u extension.Untrusted) bool { return u.PkgName == ext.PkgName }); i >= 0 {
			s.untrusted[i] = ext
		} else {
			s.untrusted = append(s.untrusted, ext)
		}
		r.publish(s)
	})
	r.deps.Installer.Complete(ext.PkgName)
}

// OnExtensionUninstalled forgets pkgName and unregisters its sources.
func (r *Registry) OnExtensionUninstalled(pkgName string) {
	r.log.V(1).Info("extension uninstalled", "pkg", pkgName)
	r.exec(func(s *state) {
		r.dropInstalled(s, pkgName)
		s.untrusted = removeUntrusted(s.untrusted, pkgName)
		r.publish(s)
	})
}
