package executor

import "fmt"

// ErrorKind classifies a callable-resolution failure.
type ErrorKind string

const (
	KindInvalidCallablePath ErrorKind = "invalid_callable_path"
	KindSymbolNotFound      ErrorKind = "symbol_not_found"
	KindNotCallable         ErrorKind = "not_callable"
)

// ResolutionError reports why a callable path could not be turned into a
// runnable function, mirroring the ValueError/ImportError/TypeError split
// safe_import raises in the Python original.
type ResolutionError struct {
	Kind ErrorKind
	Path string
	msg  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("executor: %s: %s", e.Path, e.msg)
}

func newResolutionError(kind ErrorKind, path, msg string) *ResolutionError {
	return &ResolutionError{Kind: kind, Path: path, msg: msg}
}
