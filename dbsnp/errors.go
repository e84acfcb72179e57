package dbsnp

import "github.com/pkg/errors"

// ConfigError wraps a Config validation failure. It is always fatal and
// always returned before any stage is spawned.
type ConfigError struct {
	cause error
}

func (e *ConfigError) Error() string { return e.cause.Error() }
func (e *ConfigError) Cause() error  { return e.cause }

func newConfigError(format string, args ...interface{}) error {
	return &ConfigError{cause: errors.Errorf(format, args...)}
}

// IoError wraps a per-file or per-run I/O failure. File-scoped IoErrors
// are isolated (logged; no Stats counter records them) and never abort
// the run; a run-scoped
// IoError (e.g. a recovered worker panic) is fatal and is returned from
// Build.
type IoError struct {
	cause error
}

func (e *IoError) Error() string { return e.cause.Error() }
func (e *IoError) Cause() error  { return e.cause }

func newIoError(cause error, format string, args ...interface{}) error {
	return &IoError{cause: errors.Wrapf(cause, format, args...)}
}

// WriteError wraps an index-serialisation failure. Fatal; the
// coordinator removes the partial output file.
type WriteError struct {
	cause error
}

func (e *WriteError) Error() string { return e.cause.Error() }
func (e *WriteError) Cause() error  { return e.cause }

func newWriteError(cause error, format string, args ...interface{}) error {
	return &WriteError{cause: errors.Wrapf(cause, format, args...)}
}

// InternalInvariant signals a broken invariant (e.g. a position outside
// a bin store's declared bounds). Always fatal; never recoverable.
type InternalInvariant struct {
	cause error
}

func (e *InternalInvariant) Error() string { return e.cause.Error() }
func (e *InternalInvariant) Cause() error  { return e.cause }

func newInvariantError(format string, args ...interface{}) error {
	return &InternalInvariant{cause: errors.Errorf(format, args...)}
}
