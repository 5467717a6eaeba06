// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/forgebuild/forge/internal/shell"
)

type (
	// Probe checks that a backend's client is installed and recent enough.
	// Results are cached per backend for the Probe's lifetime.
	Probe struct {
		runner   shell.Runner
		lookPath func(string) (string, error)
		logger   *log.Logger

		mu    sync.Mutex
		cache map[Kind]Status
	}

	// Status is the outcome of probing one backend client.
	Status struct {
		Usable bool
		// OnPath is true when the client binary was found, even if its
		// version could not be read.
		OnPath  bool
		Version Version
	}
)

// NewProbe creates a Probe that runs version commands through runner.
// A nil lookPath uses exec.LookPath.
func NewProbe(runner shell.Runner, lookPath func(string) (string, error), logger *log.Logger) *Probe {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Probe{
		runner:   runner,
		lookPath: lookPath,
		logger:   logger,
		cache:    make(map[Kind]Status),
	}
}

// Usable reports whether b's client is on PATH and at least b.MinVersion.
// A missing binary, a failing version command or unparseable output all
// make the backend unusable without being errors.
func (p *Probe) Usable(ctx context.Context, b *Backend) (Status, error) {
	p.mu.Lock()
	if st, ok := p.cache[b.Kind]; ok {
		p.mu.Unlock()
		return st, nil
	}
	p.mu.Unlock()

	st, err := p.probe(ctx, b)
	if err != nil {
		return Status{}, err
	}

	p.mu.Lock()
	p.cache[b.Kind] = st
	p.mu.Unlock()
	return st, nil
}

func (p *Probe) probe(ctx context.Context, b *Backend) (Status, error) {
	if _, err := p.lookPath(b.Client); err != nil {
		p.logger.Debug("client not found", "backend", b.Kind, "client", b.Client)
		return Status{}, nil
	}
	st := Status{OnPath: true}

	line, err := shell.Quote(b.Client, "--version")
	if err != nil {
		return Status{}, err
	}
	out, err := p.runner.Output(ctx, shell.Command{Line: line})
	if err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			p.logger.Debug("version command failed", "backend", b.Kind, "code", exitErr.Code)
			return st, nil
		}
		return Status{}, err
	}

	v, ok := b.ParseVersion(out)
	if !ok {
		p.logger.Debug("unrecognized version output", "backend", b.Kind, "output", out)
		return st, nil
	}
	st.Version = v
	st.Usable = v.AtLeast(b.MinVersion)
	return st, nil
}
