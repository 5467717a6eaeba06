// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDeclaration is the sentinel error wrapped by InvalidDeclarationError.
	ErrInvalidDeclaration = errors.New("invalid dependency declaration")
	// ErrMissingDependencies is the sentinel error wrapped by MissingDependenciesError.
	ErrMissingDependencies = errors.New("missing dependencies")
	// ErrToolUnavailable is the sentinel error wrapped by ToolUnavailableError.
	ErrToolUnavailable = errors.New("version control client unavailable")
	// ErrVersionMismatch is the sentinel error wrapped by VersionMismatchError.
	ErrVersionMismatch = errors.New("dependency version mismatch")
	// ErrFetchExhausted is the sentinel error wrapped by FetchExhaustedError.
	ErrFetchExhausted = errors.New("fetch attempts exhausted")
)

type (
	// InvalidDeclarationError reports a declaration that cannot be normalized.
	InvalidDeclarationError struct {
		Index  int
		Decl   any
		Reason string
	}

	// MissingDependenciesError lists every dependency that is not installed
	// and cannot be fetched, reported as one batch.
	MissingDependenciesError struct {
		Deps []Dependency
	}

	// ToolUnavailableError is returned when a backend's client is absent or
	// older than the backend's minimum version.
	ToolUnavailableError struct {
		Backend  Kind
		Client   string
		Found    Version
		Required Version
		// Installed is false when the client binary is not on PATH.
		Installed bool
	}

	// VersionMismatchError is returned when a fetch target directory exists
	// but does not hold the declared package.
	VersionMismatchError struct {
		App        string
		Dir        string
		Constraint string
		Found      Manifest
		Cause      error
	}

	// FetchExhaustedError is returned when every fetch attempt failed transiently.
	FetchExhaustedError struct {
		App      string
		Attempts int
		Cause    error
	}
)

func (e *InvalidDeclarationError) Error() string {
	return fmt.Sprintf("dependency #%d (%v): %s", e.Index+1, e.Decl, e.Reason)
}

// Unwrap returns ErrInvalidDeclaration so callers can use errors.Is.
func (e *InvalidDeclarationError) Unwrap() error { return ErrInvalidDeclaration }

func (e *MissingDependenciesError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d missing dependencies:", len(e.Deps))
	for _, d := range e.Deps {
		fmt.Fprintf(&sb, "\n  - %s", d)
	}
	return sb.String()
}

// Unwrap returns ErrMissingDependencies so callers can use errors.Is.
func (e *MissingDependenciesError) Unwrap() error { return ErrMissingDependencies }

func (e *ToolUnavailableError) Error() string {
	if !e.Installed {
		return fmt.Sprintf("%s backend requires %q on PATH", e.Backend, e.Client)
	}
	if e.Found == (Version{}) {
		return fmt.Sprintf("%s backend could not read the version of %s, %s or newer is required", e.Backend, e.Client, e.Required)
	}
	return fmt.Sprintf("%s backend requires %s %s or newer, found %s", e.Backend, e.Client, e.Required, e.Found)
}

// Unwrap returns ErrToolUnavailable so callers can use errors.Is.
func (e *ToolUnavailableError) Unwrap() error { return ErrToolUnavailable }

func (e *VersionMismatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: existing directory %s is not a valid package: %v", e.App, e.Dir, e.Cause)
	}
	return fmt.Sprintf("%s: existing directory %s holds %s %s, want %s matching %q",
		e.App, e.Dir, e.Found.Name, e.Found.Version, e.App, e.Constraint)
}

// Unwrap returns ErrVersionMismatch so callers can use errors.Is.
func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("%s: fetch failed after %d attempts: %v", e.App, e.Attempts, e.Cause)
}

// Unwrap returns both the sentinel and the last cause.
func (e *FetchExhaustedError) Unwrap() []error { return []error{ErrFetchExhausted, e.Cause} }
