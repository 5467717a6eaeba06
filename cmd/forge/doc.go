// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the forge command tree.
//
// Every command runs against the project in the working directory: its
// forge.cue declares the dependencies and the native port, the global
// config.cue supplies machine-wide settings such as the installed-package
// roots. Handlers receive an *App holding the injected services and open a
// session that loads both.
package cmd
