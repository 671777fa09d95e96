// Package loader turns installed extension packages into live sources. Each
// package is checked for the extension feature, library version range and
// signer trust before any of its entry points is instantiated.
package loader
