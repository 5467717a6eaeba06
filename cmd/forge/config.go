// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/config"
)

// newConfigCommand creates the `forge config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage forge configuration",
		Long: `Manage forge configuration.

Configuration is stored in:
  - Linux: ~/.config/forge/config.cue
  - macOS: ~/Library/Application Support/forge/config.cue
  - Windows: %APPDATA%\forge\config.cue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()
			showConfig(cmd.OutOrStdout(), s.cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(s.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configFilePath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configFilePath(flags)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s already exists\n", WarningStyle.Render("!"), PathStyle.Render(path))
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(config.GenerateCUE(config.DefaultConfig())), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", SuccessStyle.Render("✓"), PathStyle.Render(path))
			return nil
		},
	})

	return cfgCmd
}

// configFilePath is --config when given, else the file in the config directory.
func configFilePath(flags *rootFlagValues) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt), nil
}

func showConfig(out io.Writer, cfg *config.Config) {
	keyStyle := PathStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if cfg.Source != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s:\n", keyStyle.Render("lib_dirs"))
	if len(cfg.LibDirs) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, dir := range cfg.LibDirs {
		fmt.Fprintf(out, "  - %s\n", valueStyle.Render(dir))
	}

	for _, kv := range [][2]string{
		{"deps_dir", cfg.DepsDir},
		{"jobs", strconv.Itoa(cfg.Jobs)},
		{"force", strconv.FormatBool(cfg.Force)},
		{"template", cfg.Template},
		{"include_dir", cfg.IncludeDir},
		{"metrics_file", cfg.MetricsFile},
	} {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render(kv[0]), valueStyle.Render(displayValue(kv[1])))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(out, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("fetch"))
	fmt.Fprintf(out, "  backoff: %s\n", valueStyle.Render(cfg.Fetch.Backoff))
}

func displayValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return `""`
	}
	return v
}
