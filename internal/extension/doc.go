// Package extension holds the data model shared by every stage of the
// extension lifecycle: the installed, available and untrusted variants, load
// results, install steps, the error taxonomy and version ordering.
package extension
