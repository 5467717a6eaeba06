// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyCommand is returned when a Command carries no command line.
var ErrEmptyCommand = errors.New("empty command line")

type (
	// Command is one blocking external invocation.
	Command struct {
		// Line is the shell command line to run.
		Line string
		// Dir is the working directory. Empty means the process working directory.
		Dir string
		// Env holds KEY=VALUE pairs. Nil means the process environment.
		Env []string
	}

	// Runner executes commands. Run streams the command's output to the
	// runner's writers; Output captures standard output and returns it.
	// Both return *ExitError when the command exits non-zero.
	Runner interface {
		Run(ctx context.Context, cmd Command) error
		Output(ctx context.Context, cmd Command) (string, error)
	}

	// ExitError reports a command that exited with a non-zero status.
	ExitError struct {
		Line   string
		Code   int
		Output string
	}

	// Interp is the Runner backed by the mvdan.cc/sh interpreter. External
	// programs are started with the interpreter's default exec handler.
	Interp struct {
		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
	}

	// Option configures an Interp.
	Option func(*Interp)
)

// WithStdout sets where Run copies standard output.
func WithStdout(w io.Writer) Option {
	return func(i *Interp) { i.stdout = w }
}

// WithStderr sets where Run copies standard error.
func WithStderr(w io.Writer) Option {
	return func(i *Interp) { i.stderr = w }
}

// WithLogger sets the logger used for Debug-level command tracing.
func WithLogger(l *log.Logger) Option {
	return func(i *Interp) { i.logger = l }
}

// New creates an interpreter-backed Runner. Without options, output is
// discarded and nothing is logged.
func New(opts ...Option) *Interp {
	i := &Interp{stdout: io.Discard, stderr: io.Discard}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = log.New(io.Discard)
	}
	return i
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Line, e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Run executes cmd, streaming its output to the configured writers. The
// combined output is kept so that a failing command's ExitError carries it.
func (i *Interp) Run(ctx context.Context, cmd Command) error {
	var combined bytes.Buffer
	stdout := io.MultiWriter(i.stdout, &combined)
	stderr := io.MultiWriter(i.stderr, &combined)
	return i.exec(ctx, cmd, stdout, stderr, &combined)
}

// Output executes cmd and returns its standard output.
func (i *Interp) Output(ctx context.Context, cmd Command) (string, error) {
	var stdout, stderr bytes.Buffer
	err := i.exec(ctx, cmd, &stdout, &stderr, &stderr)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Output == "" {
			exitErr.Output = stdout.String()
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

func (i *Interp) exec(ctx context.Context, cmd Command, stdout, stderr io.Writer, captured *bytes.Buffer) error {
	if strings.TrimSpace(cmd.Line) == "" {
		return ErrEmptyCommand
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Line), "")
	if err != nil {
		return fmt.Errorf("failed to parse command %q: %w", cmd.Line, err)
	}

	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}

	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("command %q: %w", cmd.Line, err)
	}

	i.logger.Debug("exec", "cmd", cmd.Line, "dir", cmd.Dir)

	if err := runner.Run(ctx, prog); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("command %q: %w", cmd.Line, ctxErr)
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Line: cmd.Line, Code: int(status), Output: captured.String()}
		}
		return fmt.Errorf("command %q: %w", cmd.Line, err)
	}
	return nil
}

// Quote renders words as shell-safe literal arguments joined by spaces.
func Quote(words ...string) (string, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q: %w", w, err)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}
