// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// TemplateDefault scaffolds a descriptor with a port section and a NIF stub.
	TemplateDefault = "default"
	// TemplateMinimal scaffolds only the descriptor and an empty source file.
	TemplateMinimal = "minimal"

	// DefaultBackoff is the default pause before retrying a failed clone.
	DefaultBackoff = "1s"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// LibDirs are the installed-package roots, probed in order.
		LibDirs []string `json:"lib_dirs" mapstructure:"lib_dirs"`
		// DepsDir is the project-local dependency directory.
		DepsDir string `json:"deps_dir" mapstructure:"deps_dir"`
		// Jobs bounds parallel compilations.
		Jobs int `json:"jobs" mapstructure:"jobs"`
		// Force lets `forge init` overwrite existing files.
		Force bool `json:"force" mapstructure:"force"`
		// Template selects the `forge init` template.
		Template string `json:"template" mapstructure:"template"`
		// IncludeDir is the host runtime header directory.
		IncludeDir string `json:"include_dir" mapstructure:"include_dir"`
		// MetricsFile receives a Prometheus textfile after each command.
		MetricsFile string `json:"metrics_file" mapstructure:"metrics_file"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Fetch configures dependency fetching
		Fetch FetchConfig `json:"fetch" mapstructure:"fetch"`

		// Source is the file the configuration was read from, empty for defaults.
		Source string `json:"-" mapstructure:"-"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// FetchConfig configures dependency fetching.
	FetchConfig struct {
		// Backoff is the pause before the second clone attempt, as a Go duration.
		Backoff string `json:"backoff" mapstructure:"backoff"`
	}
)

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// GlamourStyle maps the scheme to a glamour style name.
func (cs ColorScheme) GlamourStyle() string {
	switch cs {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field errors: %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// BackoffDuration parses Backoff, falling back to DefaultBackoff when empty.
func (c FetchConfig) BackoffDuration() (time.Duration, error) {
	s := c.Backoff
	if s == "" {
		s = DefaultBackoff
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("fetch.backoff: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("fetch.backoff: negative duration %s", s)
	}
	return d, nil
}

// Validate checks constraints the decoded values must satisfy regardless
// of where they came from.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	if strings.TrimSpace(c.DepsDir) == "" {
		errs = append(errs, errors.New("deps_dir must not be empty"))
	}
	switch c.Template {
	case TemplateDefault, TemplateMinimal:
	default:
		errs = append(errs, fmt.Errorf("unknown template %q (valid: default, minimal)", c.Template))
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.Fetch.BackoffDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LibDirs:  []string{},
		DepsDir:  "deps",
		Jobs:     1,
		Template: TemplateDefault,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
		Fetch: FetchConfig{
			Backoff: DefaultBackoff,
		},
	}
}
