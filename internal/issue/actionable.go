// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"
	"strings"

	"github.com/forgebuild/forge/internal/shell"
)

type (
	// ActionableError is what forge commands return to the user: the step
	// that failed, the project, dependency or file it failed on, and what
	// to try next. Build one with ErrorContext:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load project").
	//		WithResource(dir).
	//		WithSuggestion("Run 'forge init' to create forge.cue").
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		// Operation is the failed step, phrased to follow "failed to".
		Operation string
		// Resource is optional.
		Resource    string
		Suggestions []string
		Cause       error
	}

	// ErrorContext accumulates the fields of an ActionableError.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext creates an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WithOperation sets the failed step.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the project, dependency or path involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends a remedy.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, sug)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns the accumulated error, or a nil error when no
// operation was set.
func (c *ErrorContext) BuildError() error {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message and its suggestions. In verbose mode it adds
// the cause tree, one numbered line per error, following joined errors
// such as a fetch that exhausted its attempts. Failed external commands
// also show their command line and captured output.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}

	if !verbose || e.Cause == nil {
		return b.String()
	}

	b.WriteString("\n\nError chain:")
	n := 0
	walkCauses(e.Cause, 1, func(err error, depth int) {
		n++
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "\n%s%d. %s", indent, n, err)

		if exitErr, ok := err.(*shell.ExitError); ok {
			fmt.Fprintf(&b, "\n%s   command: %s", indent, exitErr.Line)
			for line := range strings.Lines(strings.TrimSpace(exitErr.Output)) {
				fmt.Fprintf(&b, "\n%s   | %s", indent, strings.TrimRight(line, "\n"))
			}
		}
	})
	return b.String()
}

// walkCauses visits err and its causes depth first. A joined error's
// branches are visited one level deeper than the error itself.
func walkCauses(err error, depth int, visit func(error, int)) {
	for err != nil {
		visit(err, depth)
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, branch := range u.Unwrap() {
				walkCauses(branch, depth+1, visit)
			}
			return
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return
		}
	}
}
