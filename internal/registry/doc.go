// Package registry owns the authoritative lists of installed, available and
// untrusted extensions. A single goroutine applies every mutation and
// publishes the resulting snapshots; catalog fetches, package loading and
// install pipelines run elsewhere and report back to it.
package registry
