package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcekit/extmgr/internal/manifest"
)

var (
	builtinMu sync.RWMutex
	builtins  = map[string]func() any{}
)

// RegisterBuiltin makes ctor available to packages whose manifest uses the
// builtin runtime and names class as an entry point. Registering a class twice
// replaces the earlier constructor.
func RegisterBuiltin(class string, ctor func() any) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtins[class] = ctor
}

// UnregisterBuiltin removes the constructor for class.
func UnregisterBuiltin(class string) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	delete(builtins, class)
}

// BuiltinRuntime resolves entry points against constructors compiled into
// the process.
type BuiltinRuntime struct{}

// Instantiate calls the constructor registered for class.
func (b *BuiltinRuntime) Instantiate(_ context.Context, _ string, _ *manifest.Manifest, class string) (any, error) {
	builtinMu.RLock()
	ctor, ok := builtins[class]
	builtinMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no builtin registered for class %q", class)
	}
	return ctor(), nil
}
