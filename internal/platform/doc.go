// Package platform hides the permission differences between Unix and
// Windows. On Windows permission bits are not enforced, so chmod is skipped
// and every regular file counts as executable.
package platform
