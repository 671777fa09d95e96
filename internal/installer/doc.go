// Package installer drives the download, install and confirm pipeline for
// extension packages. At most one attempt runs per package name; a newer
// request supersedes the running one and its download is discarded.
package installer
