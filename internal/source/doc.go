// Package source defines the contract implemented by content sources that
// extensions provide, and the process-wide directory in which loaded sources
// are registered by id.
package source
