// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	verbose     bool
	configPath  string
	metricsFile string
}

func newRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "Dependency fetcher and native build driver",
		Long: TitleStyle.Render("forge") + SubtitleStyle.Render(" - dependency fetcher and native build driver") + `

forge resolves the dependencies a project declares in forge.cue, fetches
missing ones with git, hg, bzr or svn, and incrementally compiles the
project's C/C++ sources into loadable shared objects.

` + SubtitleStyle.Render("Examples:") + `
  forge init mydrv        Create forge.cue and a starter C source
  forge get-deps          Fetch missing dependencies, recursively
  forge check-deps        Fail when a dependency is missing
  forge compile -j 4      Build native code with 4 parallel jobs
  forge compile --watch   Rebuild whenever a source changes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is <config dir>/forge/config.cue)")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")

	rootCmd.AddCommand(
		newCheckDepsCommand(app, flags),
		newGetDepsCommand(app, flags),
		newDeleteDepsCommand(app, flags),
		newDepsCommand(app, flags),
		newCompileCommand(app, flags),
		newCleanCommand(app, flags),
		newEnvCommand(app, flags),
		newInitCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the forge command tree against os.Args and exits the
// process with the resulting status.
func Execute() {
	os.Exit(run(context.Background(), NewApp(Dependencies{}), os.Args[1:]))
}

// run executes args and returns the process exit code.
func run(ctx context.Context, app *App, args []string) int {
	rootCmd := newRootCommand(app)
	rootCmd.SetArgs(args)

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			app.renderError(w, err)
		}),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
