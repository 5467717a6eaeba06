// SPDX-License-Identifier: MPL-2.0

// Package config handles forge's global configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/forge/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/forge/config.cue on macOS, %APPDATA%\forge\config.cue
// on Windows), falling back to ./config.cue. It holds the installed-package search path,
// the project-local dependency directory, build parallelism, scaffolding defaults and UI
// settings. The FORGE_LIBS environment variable extends the search path.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
