// Package catalog fetches the remote extension index and turns it into
// available-extension records. It also tracks when the index was last
// fetched successfully so the CLI can hint at stale data.
package catalog
