package runtime

import (
	"context"
	"fmt"

	"github.com/sourcekit/extmgr/internal/manifest"
)

// Runtime turns one declared entry point into a live object. The returned
// value is expected to be a source.Source or a source.Factory; callers decide
// what to do with anything else.
type Runtime interface {
	Instantiate(ctx context.Context, pkgDir string, m *manifest.Manifest, class string) (any, error)
}

// DispatchRuntime returns the Runtime implementation for the given runtime
// identifier. Unknown identifiers yield a runtime that always fails.
func DispatchRuntime(name string) Runtime {
	switch name {
	case manifest.RuntimeBuiltin:
		return &BuiltinRuntime{}
	case manifest.RuntimeExec:
		return &ExecRuntime{}
	default:
		return &unknownRuntime{name: name}
	}
}

// unknownRuntime is returned when the runtime identifier is not recognized.
type unknownRuntime struct {
	name string
}

func (u *unknownRuntime) Instantiate(_ context.Context, _ string, _ *manifest.Manifest, _ string) (any, error) {
	return nil, fmt.Errorf("unknown runtime %q: supported runtimes are %q and %q",
		u.name, manifest.RuntimeBuiltin, manifest.RuntimeExec)
}
