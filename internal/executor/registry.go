package executor

import (
	"context"
	"strings"
	"sync"
)

// Callable is the signature every registered task function must satisfy.
// Go has no `**kwargs` spreading, so the metadata map the DAG author
// supplied is passed through as a single argument rather than spread as
// named parameters.
type Callable func(ctx context.Context, metadata map[string]any) (any, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Callable{}
)

// Register associates a callable path (e.g. "tasks.reports:generate") with
// fn. Call from an init() in the package that owns fn, so both the parent
// process and any re-executed child process (which runs the same binary,
// hence the same init()s) see the same registry.
func Register(path string, fn Callable) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[path] = fn
}

// ParseCallablePath splits a callable path on its last ":" if present,
// otherwise its last ".", into a module segment and a name segment. The
// module segment is not used to resolve anything in Go — there is no
// runtime module table — but is kept so error messages and the wire format
// stay recognizable across the two callable-path notations the spec allows.
func ParseCallablePath(path string) (module, name string, err error) {
	if path == "" {
		return "", "", newResolutionError(KindInvalidCallablePath, path, "callable path must not be empty")
	}

	sep := "."
	if strings.Contains(path, ":") {
		sep = ":"
	}

	idx := strings.LastIndex(path, sep)
	if idx <= 0 || idx == len(path)-1 {
		return "", "", newResolutionError(KindInvalidCallablePath, path, "expected module"+sep+"name")
	}
	return path[:idx], path[idx+1:], nil
}

// Lookup resolves a callable path against the process-local registry. The
// path is validated with ParseCallablePath first (so a malformed path fails
// the same way regardless of whether anything happens to be registered
// under it), then used verbatim as the registry key.
func Lookup(path string) (Callable, error) {
	if _, _, err := ParseCallablePath(path); err != nil {
		return nil, err
	}

	registryMu.RLock()
	fn, ok := registry[path]
	registryMu.RUnlock()
	if !ok {
		return nil, newResolutionError(KindSymbolNotFound, path, "no callable registered under this path")
	}
	return fn, nil
}
