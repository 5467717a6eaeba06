// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/pkg/platform"
	"github.com/forgebuild/forge/pkg/project"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// packageNamePattern keeps names usable as C identifiers and file names.
var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var (
	// ErrInvalidPackageName is returned for names init cannot scaffold.
	ErrInvalidPackageName = errors.New("invalid package name")
	// ErrUnknownTemplate is returned for a template id with no files.
	ErrUnknownTemplate = errors.New("unknown template")
)

type (
	initFlagValues struct {
		force    bool
		template string
	}

	// scaffoldFile is one file init writes.
	scaffoldFile struct {
		path     string
		template string
	}

	// scaffoldResult lists what a scaffold run wrote and left alone.
	scaffoldResult struct {
		written []string
		skipped []string
	}
)

func newInitCommand(app *App, flags *rootFlagValues) *cobra.Command {
	inf := &initFlagValues{}

	initCmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create forge.cue and a starter C source",
		Long: `Create forge.cue and c_src/<name>.c in the current directory. The name
defaults to the directory name.

Existing files are left untouched unless --force is given; every file left
alone is listed at the end.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			name := filepath.Base(s.dir)
			if len(args) == 1 {
				name = args[0]
			}
			force := inf.force || s.cfg.Force
			tmpl := inf.template
			if tmpl == "" {
				tmpl = s.cfg.Template
			}

			res, err := scaffold(s.dir, name, tmpl, force)
			if err != nil {
				return err
			}
			printScaffold(cmd.OutOrStdout(), s.dir, res)
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&inf.force, "force", "f", false, "overwrite existing files")
	initCmd.Flags().StringVarP(&inf.template, "template", "t", "", "template to use (default, minimal)")
	return initCmd
}

// validatePackageName rejects names that cannot become file names and C
// identifiers on every platform.
func validatePackageName(name string) error {
	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("%w %q: use letters, digits and underscores, starting with a letter", ErrInvalidPackageName, name)
	}
	if platform.IsWindowsReservedName(name) {
		return fmt.Errorf("%w %q: reserved file name on Windows", ErrInvalidPackageName, name)
	}
	return nil
}

// scaffoldFiles returns the files template id produces for name.
func scaffoldFiles(id, name string) ([]scaffoldFile, error) {
	switch id {
	case "", config.TemplateDefault, config.TemplateMinimal:
	default:
		return nil, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownTemplate, id, config.TemplateDefault, config.TemplateMinimal)
	}
	if id == "" {
		id = config.TemplateDefault
	}
	return []scaffoldFile{
		{path: project.DescriptorName, template: "templates/" + id + ".cue.tmpl"},
		{path: filepath.Join("c_src", name+".c"), template: "templates/" + id + ".c.tmpl"},
	}, nil
}

// scaffold renders every file of the template into dir. Files that exist
// are skipped unless force is set.
func scaffold(dir, name, id string, force bool) (scaffoldResult, error) {
	var res scaffoldResult
	if err := validatePackageName(name); err != nil {
		return res, err
	}
	files, err := scaffoldFiles(id, name)
	if err != nil {
		return res, err
	}

	data := struct{ Name string }{Name: name}
	for _, f := range files {
		target := filepath.Join(dir, f.path)
		if !force {
			if _, err := os.Stat(target); err == nil {
				res.skipped = append(res.skipped, f.path)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return res, err
			}
		}

		tmpl, err := template.ParseFS(templateFS, f.template)
		if err != nil {
			return res, fmt.Errorf("failed to parse template %s: %w", f.template, err)
		}
		var content strings.Builder
		if err := tmpl.Execute(&content, data); err != nil {
			return res, fmt.Errorf("failed to render %s: %w", f.path, err)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return res, fmt.Errorf("failed to create directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(target, []byte(content.String()), 0o644); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		res.written = append(res.written, f.path)
	}
	return res, nil
}

func printScaffold(out io.Writer, dir string, res scaffoldResult) {
	for _, path := range res.written {
		fmt.Fprintf(out, "%s Created %s\n", SuccessStyle.Render("✓"), PathStyle.Render(filepath.Join(dir, path)))
	}
	if len(res.skipped) > 0 {
		fmt.Fprintf(out, "%s Not overwritten (use --force to replace):\n", WarningStyle.Render("!"))
		for _, path := range res.skipped {
			fmt.Fprintf(out, "  %s\n", path)
		}
	}
	if len(res.written) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, SubtitleStyle.Render("Next steps:"))
	fmt.Fprintln(out, "  1. Declare dependencies in forge.cue")
	fmt.Fprintln(out, "  2. Run 'forge get-deps' to fetch them")
	fmt.Fprintln(out, "  3. Run 'forge compile' to build the driver")
}
