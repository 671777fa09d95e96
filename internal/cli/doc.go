// Package cli defines the Cobra command tree for the extmgr CLI. Each file
// in this package registers one top-level command (install, trust, watch,
// etc.) with the root command. Command implementations delegate to the
// registry for business logic and only handle flag parsing, I/O formatting,
// and user interaction.
package cli
