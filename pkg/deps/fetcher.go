// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/forgebuild/forge/internal/metrics"
	"github.com/forgebuild/forge/internal/shell"
)

const (
	// DefaultAttempts bounds the clone attempts for one dependency.
	DefaultAttempts = 3
	// DefaultBackoff is the pause before the second attempt; it doubles after.
	DefaultBackoff = time.Second
)

type (
	// FetcherOptions configures a Fetcher.
	FetcherOptions struct {
		Runner   shell.Runner
		Probe    *Probe
		Reader   MetadataReader
		CodePath *CodePath
		// Attempts defaults to DefaultAttempts.
		Attempts int
		// Backoff defaults to DefaultBackoff. Negative means no pause.
		Backoff time.Duration
		Metrics *metrics.Recorder
		Logger  *log.Logger
	}

	// Fetcher clones a dependency from its source into its directory and
	// verifies the result.
	Fetcher struct {
		runner   shell.Runner
		probe    *Probe
		reader   MetadataReader
		codePath *CodePath
		attempts int
		backoff  time.Duration
		metrics  *metrics.Recorder
		logger   *log.Logger
	}
)

// NewFetcher creates a Fetcher. A nil Probe is built from the runner.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		runner:   opts.Runner,
		probe:    opts.Probe,
		reader:   opts.Reader,
		codePath: opts.CodePath,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if f.logger == nil {
		f.logger = log.New(io.Discard)
	}
	if f.probe == nil {
		f.probe = NewProbe(f.runner, nil, f.logger)
	}
	if f.codePath == nil {
		f.codePath = NewCodePath()
	}
	if f.attempts <= 0 {
		f.attempts = DefaultAttempts
	}
	if f.backoff == 0 {
		f.backoff = DefaultBackoff
	}
	return f
}

// Fetch makes d.Dir hold the package d declares and adds it to the code
// path. An existing directory is only verified: a match performs no
// external invocation, a mismatch is a *VersionMismatchError. Otherwise the
// backend client is probed (*ToolUnavailableError when unusable), the
// source is cloned and moved to its revision, and the result is verified.
// Clone failures are retried; when every attempt fails the error is a
// *FetchExhaustedError.
func (f *Fetcher) Fetch(ctx context.Context, d Dependency) error {
	if d.Source == nil {
		return &MissingDependenciesError{Deps: []Dependency{d}}
	}
	if d.Dir == "" {
		return fmt.Errorf("%s: no fetch target directory", d.App)
	}

	kind := string(d.Source.Backend.Kind)
	cloned := false
	exhausted, err := retryWithBackoff(ctx, f.attempts, f.backoff, func(attempt int) (bool, error) {
		present, err := isDir(d.Dir)
		if err != nil {
			return false, err
		}
		if present {
			return false, f.verify(d)
		}

		if err := f.ensureTool(ctx, d.Source.Backend); err != nil {
			return false, err
		}

		f.metrics.FetchAttempt(kind)
		f.logger.Info("fetching dependency", "app", d.App, "source", d.Source, "attempt", attempt+1)
		if retry, err := f.checkout(ctx, d); err != nil {
			return retry, err
		}
		cloned = true

		if present, err = isDir(d.Dir); err != nil {
			return false, err
		}
		if !present {
			return true, fmt.Errorf("%s: %s still absent after fetch", d.App, d.Dir)
		}
		return false, f.verify(d)
	})

	if err != nil {
		f.metrics.Fetched(kind, metrics.ResultFailed)
		if exhausted {
			return &FetchExhaustedError{App: d.App, Attempts: f.attempts, Cause: err}
		}
		return err
	}

	f.codePath.Add(d.Dir)
	if cloned {
		f.metrics.Fetched(kind, metrics.ResultFetched)
		f.logger.Info("fetched dependency", "app", d.App, "dir", d.Dir)
	} else {
		f.metrics.Fetched(kind, metrics.ResultPresent)
		f.logger.Info("dependency already present", "app", d.App, "dir", d.Dir)
	}
	return nil
}

func (f *Fetcher) ensureTool(ctx context.Context, b *Backend) error {
	st, err := f.probe.Usable(ctx, b)
	if err != nil {
		return err
	}
	if !st.Usable {
		return &ToolUnavailableError{
			Backend:   b.Kind,
			Client:    b.Client,
			Found:     st.Version,
			Required:  b.MinVersion,
			Installed: st.OnPath,
		}
	}
	return nil
}

// checkout runs the clone from d.Dir's parent, then the revision update
// inside d.Dir. Neither failure leaves a directory behind; only a failed
// clone is retryable.
func (f *Fetcher) checkout(ctx context.Context, d Dependency) (retry bool, err error) {
	parent := filepath.Dir(d.Dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", parent, err)
	}

	cloneLine, err := d.Source.CloneLine(filepath.Base(d.Dir))
	if err != nil {
		return false, err
	}
	if err := f.runner.Run(ctx, shell.Command{Line: cloneLine, Dir: parent}); err != nil {
		f.removePartial(d.Dir)
		return isTransient(err), fmt.Errorf("clone %s: %w", d.Source.URL, err)
	}

	updateLine, err := d.Source.UpdateLine()
	if err != nil {
		return false, err
	}
	if err := f.runner.Run(ctx, shell.Command{Line: updateLine, Dir: d.Dir}); err != nil {
		f.removePartial(d.Dir)
		return false, fmt.Errorf("update %s to %s: %w", d.App, d.Source.Rev, err)
	}
	return false, nil
}

func (f *Fetcher) removePartial(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		f.logger.Warn("failed to remove partial clone", "dir", dir, "err", err)
	}
}

func (f *Fetcher) verify(d Dependency) error {
	m, ok, err := f.reader.ReadManifest(d.Dir)
	if err == nil && !ok {
		err = errors.New("no package descriptor")
	}
	if err != nil {
		return &VersionMismatchError{App: d.App, Dir: d.Dir, Constraint: d.Constraint.String(), Cause: err}
	}
	if !d.Matches(m) {
		return &VersionMismatchError{App: d.App, Dir: d.Dir, Constraint: d.Constraint.String(), Found: m}
	}
	return nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
