// SPDX-License-Identifier: MPL-2.0

package native

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEnvVar is the sentinel error wrapped by InvalidEnvVarError.
	ErrInvalidEnvVar = errors.New("invalid environment entry")
	// ErrNotConverged is the sentinel error wrapped by NotConvergedError.
	ErrNotConverged = errors.New("environment expansion did not converge")
	// ErrCompileFailed is the sentinel error wrapped by CompileError.
	ErrCompileFailed = errors.New("compilation failed")
	// ErrLinkFailed is the sentinel error wrapped by LinkError.
	ErrLinkFailed = errors.New("linking failed")
	// ErrScriptFailed is the sentinel error wrapped by ScriptError.
	ErrScriptFailed = errors.New("build script failed")
)

type (
	// InvalidEnvVarError reports an entry with an empty key or a gate that
	// is not a valid regular expression.
	InvalidEnvVarError struct {
		// Source is the index of the EnvVar list passed to Compose.
		Source int
		Index  int
		Key    string
		Reason string
	}

	// NotConvergedError lists the keys still changing, or still referring
	// to themselves, when expansion stopped.
	NotConvergedError struct {
		Passes int
		Keys   []string
	}

	// CompileError reports a failed compiler invocation.
	CompileError struct {
		Source string
		Cause  error
	}

	// LinkError reports a failed linker invocation.
	LinkError struct {
		Output string
		Cause  error
	}

	// ScriptError reports a failed pre-build or cleanup script.
	ScriptError struct {
		Script string
		Cause  error
	}
)

func (e *InvalidEnvVarError) Error() string {
	return fmt.Sprintf("env source %d entry %d (%q): %s", e.Source, e.Index, e.Key, e.Reason)
}

// Unwrap returns ErrInvalidEnvVar so callers can use errors.Is.
func (e *InvalidEnvVarError) Unwrap() error { return ErrInvalidEnvVar }

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("environment expansion did not converge after %d passes (cyclic references in %s)",
		e.Passes, strings.Join(e.Keys, ", "))
}

// Unwrap returns ErrNotConverged so callers can use errors.Is.
func (e *NotConvergedError) Unwrap() error { return ErrNotConverged }

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Source, e.Cause)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *CompileError) Unwrap() []error { return []error{ErrCompileFailed, e.Cause} }

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Output, e.Cause)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *LinkError) Unwrap() []error { return []error{ErrLinkFailed, e.Cause} }

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %q: %v", e.Script, e.Cause)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ScriptError) Unwrap() []error { return []error{ErrScriptFailed, e.Cause} }
