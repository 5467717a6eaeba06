// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/issue"
	"github.com/forgebuild/forge/internal/watch"
	"github.com/forgebuild/forge/pkg/native"
	"github.com/forgebuild/forge/pkg/project"
)

type compileFlagValues struct {
	jobs  int
	watch bool
}

func newCompileCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cf := &compileFlagValues{}

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Build the project's native sources",
		Long: `Compile every C/C++ source whose object file is missing or older than the
source, then relink each shared object that depends on a freshly compiled
object or is missing.

Dependencies are resolved to build the code path but never fetched; run
'forge get-deps' first. With --watch the build reruns whenever a source or
header changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			p, err := s.project()
			if err != nil {
				return wrapProjectError(s.dir, err)
			}
			b, err := s.builder(cmd.Context(), p, cf.jobs)
			if err != nil {
				return err
			}

			if !cf.watch {
				return compileOnce(cmd.Context(), cmd.OutOrStdout(), b, p)
			}
			return watchCompile(cmd, s, b, p)
		},
	}

	compileCmd.Flags().IntVarP(&cf.jobs, "jobs", "j", 0, "maximum parallel compilations (default from config)")
	compileCmd.Flags().BoolVarP(&cf.watch, "watch", "w", false, "rebuild whenever a source or header changes")
	return compileCmd
}

func compileOnce(ctx context.Context, out io.Writer, b *native.Builder, p *project.Project) error {
	start := time.Now()
	report, err := b.Compile(ctx)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("build native code").
			WithResource(p.Name).
			Wrap(err).
			BuildError()
	}
	printReport(out, report, start)
	return nil
}

func printReport(out io.Writer, report native.Report, start time.Time) {
	if len(report.Compiled)+len(report.UpToDate) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No native sources"))
		return
	}
	for _, output := range report.Linked {
		fmt.Fprintf(out, "%s Linked %s\n", SuccessStyle.Render("✓"), PathStyle.Render(output))
	}
	fmt.Fprintf(out, "%s %d compiled, %d up to date, %d linked, %d skipped (%s)\n",
		SuccessStyle.Render("✓"),
		len(report.Compiled), len(report.UpToDate), len(report.Linked), len(report.Skipped),
		elapsed(start))
}

// watchCompile builds once, then rebuilds on every settled change until
// the command is interrupted. Build failures are reported and watching
// continues.
func watchCompile(cmd *cobra.Command, s *session, b *native.Builder, p *project.Project) error {
	out := cmd.OutOrStdout()
	if err := compileOnce(cmd.Context(), out, b, p); err != nil {
		s.app.renderError(cmd.ErrOrStderr(), err)
	}

	patterns, ignore := watch.NativePatterns(p.Dir, p.Native())
	w, err := watch.New(watch.Config{
		Patterns: patterns,
		Ignore:   append(ignore, depsIgnore(p.Dir, p.DepsPath(s.cfg.DepsDir))...),
		BaseDir:  p.Dir,
		Logger:   s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(out, "\n%s %d change(s), rebuilding\n", PathStyle.Render("→"), len(changed))
			if err := compileOnce(ctx, out, b, p); err != nil {
				s.app.renderError(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(out, "\n%s Watching for changes (Ctrl+C to stop)\n", PathStyle.Render("→"))
	return w.Run(cmd.Context())
}

// depsIgnore keeps fetched dependencies out of the watch set. A deps
// directory outside the project is never watched and needs no pattern.
func depsIgnore(projectDir, depsDir string) []string {
	rel, err := filepath.Rel(projectDir, depsDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{filepath.ToSlash(rel) + "/**"}
}

func newCleanCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove object files and linked outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			p, err := s.project()
			if err != nil {
				return wrapProjectError(s.dir, err)
			}
			b, err := s.builder(cmd.Context(), p, 1)
			if err != nil {
				return err
			}

			removed, err := b.Clean(cmd.Context())
			out := cmd.OutOrStdout()
			for _, path := range removed {
				fmt.Fprintf(out, "%s Removed %s\n", SuccessStyle.Render("✓"), PathStyle.Render(path))
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(out, SubtitleStyle.Render("Nothing to clean"))
			}
			return nil
		},
	}
}

func newEnvCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var all bool

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Print the native build environment",
		Long: `Print the environment compile commands run with, as sorted KEY=VALUE lines.

By default only the keys forge defines or the project overrides are shown;
--all includes the inherited process environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			p, err := s.project()
			if err != nil {
				return wrapProjectError(s.dir, err)
			}
			r, err := s.resolver(p)
			if err != nil {
				return err
			}
			if _, _, err := r.Classify(cmd.Context(), p.Deps); err != nil {
				return err
			}
			env, err := s.environment(p, r.CodePath())
			if err != nil {
				return err
			}

			shown := make(map[string]bool)
			for _, v := range native.DefaultEnv(native.Defaults{}) {
				shown[v.Key] = true
			}
			for _, v := range p.EnvOverrides() {
				shown[v.Key] = true
			}
			out := cmd.OutOrStdout()
			for _, k := range env.Keys() {
				if !all && !shown[k] {
					continue
				}
				v, _ := env.Get(k)
				fmt.Fprintf(out, "%s=%s\n", k, v)
			}
			return nil
		},
	}

	envCmd.Flags().BoolVarP(&all, "all", "a", false, "include the inherited process environment")
	return envCmd
}
