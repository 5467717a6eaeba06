// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/issue"
	"github.com/forgebuild/forge/pkg/deps"
	"github.com/forgebuild/forge/pkg/project"
)

// exitMissingDeps is the status of check-deps when a dependency is missing,
// distinct from operational failures.
const exitMissingDeps = 2

func newCheckDepsCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "check-deps",
		Short: "Verify that every declared dependency is available",
		Long: `Verify that every dependency declared in forge.cue is available, either
in an installed-package root or in the project's dependency directory.

Exits with status 2 and lists every missing dependency otherwise. Nothing
is fetched.`,
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

			if err := r.Verify(cmd.Context(), p.Deps); err != nil {
				if errors.Is(err, deps.ErrMissingDependencies) {
					return &ExitError{Code: exitMissingDeps, Err: issue.NewErrorContext().
						WithOperation("verify dependencies").
						WithResource(p.Name).
						WithSuggestion("Run 'forge get-deps' to fetch dependencies that declare a source").
						Wrap(err).
						BuildError()}
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s All dependencies available\n", SuccessStyle.Render("✓"))
			printCodePath(cmd, r.CodePath())
			return nil
		},
	}
}

func newGetDepsCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "get-deps",
		Short: "Fetch missing dependencies, recursively",
		Long: `Fetch every missing dependency that declares a source, then resolve the
dependencies declared by each fetched or project-local package the same
way. Fetches run one at a time; the first failure aborts.`,
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

			rec, err := r.Walk(cmd.Context(), p.Deps, project.LoadDeclarations)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("get dependencies").
					WithResource(p.Name).
					Wrap(err).
					BuildError()
			}

			out := cmd.OutOrStdout()
			fetched := rec.Collect()
			if len(fetched) == 0 {
				fmt.Fprintf(out, "%s Nothing to fetch\n", SuccessStyle.Render("✓"))
			}
			for _, d := range fetched {
				fmt.Fprintf(out, "%s Fetched %s into %s\n", SuccessStyle.Render("✓"), d.App, PathStyle.Render(d.Dir))
			}
			printCodePath(cmd, r.CodePath())
			return nil
		},
	}
}

func newDeleteDepsCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-deps",
		Short: "Remove fetched dependencies from the project",
		Long: `Remove every available dependency that lives in the project's dependency
directory. Packages found in installed-package roots are never touched.`,
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

			deleted, err := r.Delete(cmd.Context(), p.Deps)
			out := cmd.OutOrStdout()
			for _, d := range deleted {
				fmt.Fprintf(out, "%s Deleted %s\n", SuccessStyle.Render("✓"), PathStyle.Render(d.Dir))
			}
			if err != nil {
				return err
			}
			if len(deleted) == 0 {
				fmt.Fprintln(out, SubtitleStyle.Render("No project-local dependencies to delete"))
			}
			return nil
		},
	}
}

func newDepsCommand(app *App, flags *rootFlagValues) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect declared dependencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	depsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show every declared dependency and where it resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDeps(cmd, app, flags)
		},
	})

	depsCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the code search path, one directory per line",
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
			r, err := s.resolver(p)
			if err != nil {
				return err
			}
			if _, _, err := r.Classify(cmd.Context(), p.Deps); err != nil {
				return err
			}
			for _, dir := range r.CodePath().Dirs() {
				fmt.Fprintln(cmd.OutOrStdout(), dir)
			}
			return nil
		},
	})

	return depsCmd
}

func listDeps(cmd *cobra.Command, app *App, flags *rootFlagValues) error {
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
	available, missing, err := r.Classify(cmd.Context(), p.Deps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(available)+len(missing) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No dependencies declared"))
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("APP", "VERSION", "STATE", "DIRECTORY", "REVISION")
	for _, d := range available {
		state := "system"
		if r.IsLocal(d) {
			state = "local"
		}
		t.Row(d.App, d.Constraint.String(), state, d.Dir, revisionOf(s, d))
	}
	for _, d := range missing {
		state := "missing"
		if d.Source == nil {
			state = "missing (no source)"
		}
		t.Row(d.App, d.Constraint.String(), state, d.Dir, "")
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

// revisionOf describes the checked-out commit of a git dependency.
func revisionOf(s *session, d deps.Dependency) string {
	if d.Source == nil || d.Source.Backend.Kind != deps.Git {
		return ""
	}
	head, err := deps.GitHead(d.Dir)
	if err != nil {
		s.logger.Debug("no git checkout", "app", d.App, "err", err)
		return ""
	}
	return head.Short() + " (" + head.Ref + ")"
}

func printCodePath(cmd *cobra.Command, cp *deps.CodePath) {
	out := cmd.OutOrStdout()
	dirs := cp.Dirs()
	if len(dirs) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Code path"))
	for _, dir := range dirs {
		fmt.Fprintf(out, "  %s\n", PathStyle.Render(dir))
	}
}
