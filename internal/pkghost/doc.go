// Package pkghost is a filesystem-backed package manager for extension
// packages. It installs signed archives under a packages root, refuses
// updates signed by a different key, and broadcasts lifecycle events the
// way a platform package manager does.
package pkghost
