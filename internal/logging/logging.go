// Package logging builds the process-wide logr.Logger. Components receive a
// logger through their constructors and name themselves with WithName.
package logging

import (
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// New returns a logger writing to w. Messages logged with V(n) are emitted
// only when n <= verbosity.
func New(w io.Writer, verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.NewWithOptions(log.New(w, "", log.LstdFlags), stdr.Options{LogCaller: stdr.None})
}
