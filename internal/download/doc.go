// Package download runs id-addressed background HTTP downloads into a spool
// directory. Callers poll Status, subscribe to completion notices and fetch
// the result path of a successful download.
package download
