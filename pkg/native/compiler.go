// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/forgebuild/forge/internal/metrics"
	"github.com/forgebuild/forge/internal/shell"
	"github.com/forgebuild/forge/pkg/platform"
)

type (
	// Options configures a Builder.
	Options struct {
		// Dir is the project directory. Relative paths resolve against it and
		// every command runs in it.
		Dir      string
		Config   Config
		Env      Env
		Runner   shell.Runner
		Platform platform.Descriptor
		// Jobs bounds parallel compilations. Values below 2 compile sequentially.
		Jobs    int
		Metrics *metrics.Recorder
		Logger  *log.Logger
	}

	// Builder compiles and links a project's native sources.
	Builder struct {
		dir      string
		cfg      Config
		env      []string
		runner   shell.Runner
		platform platform.Descriptor
		jobs     int
		metrics  *metrics.Recorder
		logger   *log.Logger
	}

	// Report summarizes one Compile run. Compiled and UpToDate hold source
	// paths; Linked and Skipped hold link outputs.
	Report struct {
		Compiled []string
		UpToDate []string
		Linked   []string
		Skipped  []string
	}
)

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		dir:      opts.Dir,
		cfg:      opts.Config,
		env:      opts.Env.Environ(),
		runner:   opts.Runner,
		platform: opts.Platform,
		jobs:     opts.Jobs,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard)
	}
	if b.jobs < 1 {
		b.jobs = 1
	}
	if opts.Env.Len() == 0 {
		b.env = nil
	}
	return b
}

// Sources expands the configured source patterns.
func (b *Builder) Sources() ([]SourceFile, error) {
	return ExpandSources(b.dir, b.cfg.SourcePatterns())
}

// Plan returns the sources and the link specs that Compile would use.
func (b *Builder) Plan() ([]SourceFile, []LinkSpec, error) {
	sources, err := b.Sources()
	if err != nil {
		return nil, nil, err
	}
	return sources, b.cfg.LinkSpecs(Objects(sources), b.platform), nil
}

// Compile runs the pre-build script when needed, compiles every stale
// source and relinks the outputs that depend on a fresh object or are
// missing. Any failure aborts the build.
func (b *Builder) Compile(ctx context.Context) (Report, error) {
	start := time.Now()
	defer b.metrics.BuildFinished(start)

	var report Report
	if err := b.runPreScript(ctx); err != nil {
		return report, err
	}

	sources, specs, err := b.Plan()
	if err != nil {
		return report, err
	}
	if len(sources) == 0 {
		b.logger.Info("no native sources", "patterns", b.cfg.SourcePatterns())
		return report, nil
	}

	fresh, err := b.compileAll(ctx, sources, &report)
	if err != nil {
		return report, err
	}

	for _, spec := range specs {
		relink, err := b.needsLink(spec, fresh)
		if err != nil {
			return report, err
		}
		b.metrics.Linked(relink)
		if !relink {
			b.logger.Info("output up to date", "output", spec.Output)
			report.Skipped = append(report.Skipped, spec.Output)
			continue
		}
		if err := b.link(ctx, spec); err != nil {
			return report, err
		}
		report.Linked = append(report.Linked, spec.Output)
	}
	return report, nil
}

// compileAll compiles each distinct stale object once and returns the set
// of objects written in this run.
func (b *Builder) compileAll(ctx context.Context, sources []SourceFile, report *Report) (map[string]bool, error) {
	var stale []SourceFile
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		obj := b.objectKey(src.Object())
		if seen[obj] {
			continue
		}
		seen[obj] = true

		needed, err := b.needsCompile(src)
		if err != nil {
			return nil, err
		}
		if !needed {
			b.logger.Info("object up to date", "object", obj)
			report.UpToDate = append(report.UpToDate, src.Path)
			continue
		}
		stale = append(stale, src)
	}

	fresh := make(map[string]bool, len(stale))
	if b.jobs == 1 || len(stale) < 2 {
		for _, src := range stale {
			if err := b.compile(ctx, src); err != nil {
				return nil, err
			}
			fresh[b.objectKey(src.Object())] = true
			report.Compiled = append(report.Compiled, src.Path)
		}
		return fresh, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs)
	for _, src := range stale {
		g.Go(func() error {
			if err := b.compile(gctx, src); err != nil {
				return err
			}
			mu.Lock()
			fresh[b.objectKey(src.Object())] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, src := range stale {
		report.Compiled = append(report.Compiled, src.Path)
	}
	return fresh, nil
}

func (b *Builder) needsCompile(src SourceFile) (bool, error) {
	objTime, ok, err := mtime(b.path(src.Object()))
	if err != nil || !ok {
		return true, err
	}
	srcTime, ok, err := mtime(b.path(src.Path))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("source %s disappeared", src.Path)
	}
	return objTime.Before(srcTime), nil
}

func (b *Builder) compile(ctx context.Context, src SourceFile) error {
	args, err := shell.Quote(src.Path, "-o", src.Object())
	if err != nil {
		return &CompileError{Source: src.Path, Cause: err}
	}
	line := "$CC -c $CFLAGS $DRV_CFLAGS " + args
	if src.IsCXX() {
		line = "$CXX -c $CXXFLAGS $DRV_CFLAGS " + args
	}

	b.logger.Info("compiling", "source", src.Path)
	if err := b.runner.Run(ctx, b.command(line)); err != nil {
		return &CompileError{Source: src.Path, Cause: err}
	}
	b.metrics.Compiled()
	return nil
}

// needsLink reports whether spec's output is missing, or at least as old
// as the newest object compiled in this run that it depends on.
func (b *Builder) needsLink(spec LinkSpec, fresh map[string]bool) (bool, error) {
	outTime, ok, err := mtime(b.path(spec.Output))
	if err != nil || !ok {
		return true, err
	}
	for _, obj := range spec.Objects {
		if !fresh[b.objectKey(obj)] {
			continue
		}
		objTime, ok, err := mtime(b.path(obj))
		if err != nil {
			return false, err
		}
		if ok && !objTime.Before(outTime) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Builder) link(ctx context.Context, spec LinkSpec) error {
	if err := os.MkdirAll(filepath.Dir(b.path(spec.Output)), 0o755); err != nil {
		return &LinkError{Output: spec.Output, Cause: err}
	}
	objs, err := shell.Quote(spec.Objects...)
	if err != nil {
		return &LinkError{Output: spec.Output, Cause: err}
	}
	out, err := shell.Quote(spec.Output)
	if err != nil {
		return &LinkError{Output: spec.Output, Cause: err}
	}

	b.logger.Info("linking", "output", spec.Output)
	line := "$CC " + objs + " $LDFLAGS $DRV_LDFLAGS -o " + out
	if err := b.runner.Run(ctx, b.command(line)); err != nil {
		return &LinkError{Output: spec.Output, Cause: err}
	}
	return nil
}

func (b *Builder) runPreScript(ctx context.Context) error {
	s := b.cfg.PreScript
	if s == nil || s.Script == "" {
		return nil
	}
	if s.Sentinel != "" {
		if _, ok, err := mtime(b.path(s.Sentinel)); err != nil {
			return &ScriptError{Script: s.Script, Cause: err}
		} else if ok {
			b.logger.Info("pre-build script already done", "sentinel", s.Sentinel)
			return nil
		}
	}

	b.logger.Info("running pre-build script", "script", s.Script)
	if err := b.runner.Run(ctx, b.command(s.Script)); err != nil {
		return &ScriptError{Script: s.Script, Cause: err}
	}
	if s.Sentinel == "" {
		return nil
	}
	if _, ok, err := mtime(b.path(s.Sentinel)); err != nil {
		return &ScriptError{Script: s.Script, Cause: err}
	} else if !ok {
		return &ScriptError{Script: s.Script, Cause: fmt.Errorf("sentinel %s was not created", s.Sentinel)}
	}
	return nil
}

func (b *Builder) command(line string) shell.Command {
	return shell.Command{Line: line, Dir: b.dir, Env: b.env}
}

func (b *Builder) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.dir, p)
}

// objectKey identifies an object path however a link spec spells it.
func (b *Builder) objectKey(p string) string {
	return filepath.Clean(b.path(p))
}

// mtime returns the modification time of path and whether it exists.
func mtime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}
