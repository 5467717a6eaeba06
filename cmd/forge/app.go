// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/metrics"
	"github.com/forgebuild/forge/internal/shell"
	"github.com/forgebuild/forge/pkg/deps"
	"github.com/forgebuild/forge/pkg/native"
	"github.com/forgebuild/forge/pkg/platform"
	"github.com/forgebuild/forge/pkg/project"
)

type (
	// App wires CLI services and shared dependencies. Every cobra handler
	// receives the same App.
	App struct {
		Config   config.Provider
		Runner   shell.Runner
		Platform platform.Descriptor
		// Getwd locates the project directory.
		Getwd   func() (string, error)
		Environ func() []string
		stdout  io.Writer
		stderr  io.Writer
		// verbose and style follow the last opened session, for error rendering.
		verbose bool
		style   string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   config.Provider
		Runner   shell.Runner
		Platform *platform.Descriptor
		Getwd    func() (string, error)
		Environ  func() []string
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// session is the per-invocation state a command works with.
	session struct {
		app     *App
		cfg     *config.Config
		logger  *log.Logger
		metrics *metrics.Recorder
		dir     string
		// metricsFile is where the recorder is flushed when the command ends.
		metricsFile string
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:  deps.Config,
		Runner:  deps.Runner,
		Getwd:   deps.Getwd,
		Environ: deps.Environ,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		style:   config.ColorSchemeAuto.GlamourStyle(),
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if deps.Platform != nil {
		app.Platform = *deps.Platform
	} else {
		app.Platform = platform.Host()
	}
	if app.Getwd == nil {
		app.Getwd = os.Getwd
	}
	if app.Environ == nil {
		app.Environ = os.Environ
	}
	return app
}

// open loads the configuration and builds the logger and metrics recorder
// for one command.
func (app *App) open(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	verbose := flags.verbose || cfg.UI.Verbose
	app.verbose = verbose
	app.style = cfg.UI.ColorScheme.GlamourStyle()

	logger := log.NewWithOptions(app.stderr, log.Options{Prefix: config.AppName})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if app.Runner == nil {
		app.Runner = shell.New(shell.WithStdout(app.stderr), shell.WithStderr(app.stderr), shell.WithLogger(logger))
	}

	dir, err := app.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine project directory: %w", err)
	}

	metricsFile := flags.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.MetricsFile
	}
	return &session{
		app:         app,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics.New(),
		dir:         dir,
		metricsFile: metricsFile,
	}, nil
}

// close flushes metrics. It is deferred by every command that opened a
// session, so a failing command still records what it did.
func (s *session) close() {
	if s.metricsFile == "" {
		return
	}
	if err := s.metrics.WriteFile(s.metricsFile); err != nil {
		s.logger.Warn("failed to write metrics", "file", s.metricsFile, "err", err)
	}
}

// project loads the descriptor of the project in the working directory.
func (s *session) project() (*project.Project, error) {
	return project.Load(s.dir)
}

// resolver builds a Resolver over the configured library roots and the
// project's dependency directory.
func (s *session) resolver(p *project.Project) (*deps.Resolver, error) {
	backoff, err := s.cfg.Fetch.BackoffDuration()
	if err != nil {
		return nil, err
	}
	if backoff == 0 {
		backoff = -1
	}

	codePath := deps.NewCodePath()
	reader := project.ManifestReader{}
	fetcher := deps.NewFetcher(deps.FetcherOptions{
		Runner:   s.app.Runner,
		Reader:   reader,
		CodePath: codePath,
		Backoff:  backoff,
		Metrics:  s.metrics,
		Logger:   s.logger,
	})
	return deps.NewResolver(deps.Options{
		LibDirs:  s.cfg.LibDirs,
		DepsDir:  p.DepsPath(s.cfg.DepsDir),
		Reader:   reader,
		Fetcher:  fetcher,
		CodePath: codePath,
		Logger:   s.logger,
	}), nil
}

// environment composes the native build environment: the process
// environment, then the toolchain defaults, then the project overrides.
func (s *session) environment(p *project.Project, codePath *deps.CodePath) (native.Env, error) {
	defaults := native.DefaultEnv(native.Defaults{
		Platform:   s.app.Platform,
		IncludeDir: s.cfg.IncludeDir,
		CodePath:   codePath.Dirs(),
	})
	return native.Compose(
		s.app.Platform.String(),
		native.ProcessEnv(s.app.Environ()),
		defaults,
		p.EnvOverrides(),
	)
}

// builder resolves the code path without fetching and returns a Builder for
// the project's native port.
func (s *session) builder(ctx context.Context, p *project.Project, jobs int) (*native.Builder, error) {
	r, err := s.resolver(p)
	if err != nil {
		return nil, err
	}
	if _, _, err := r.Classify(ctx, p.Deps); err != nil {
		return nil, err
	}
	env, err := s.environment(p, r.CodePath())
	if err != nil {
		return nil, err
	}
	if jobs < 1 {
		jobs = s.cfg.Jobs
	}
	return native.NewBuilder(native.Options{
		Dir:      p.Dir,
		Config:   p.Native(),
		Env:      env,
		Runner:   s.app.Runner,
		Platform: s.app.Platform,
		Jobs:     jobs,
		Metrics:  s.metrics,
		Logger:   s.logger,
	}), nil
}

// elapsed renders a duration for summaries.
func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
