// SPDX-License-Identifier: MPL-2.0

// Package native drives the incremental C/C++ build of a package's port
// sources into loadable shared objects.
//
// Compose resolves the build environment from ordered EnvVar lists (process
// environment, defaults, project overrides). Entries can be gated on the
// platform descriptor, may extend their own previous value ("$CFLAGS -O2")
// and may reference other keys; references are substituted until a fixed
// point is reached.
//
// A Builder expands the source globs, compiles every source whose object is
// missing or older than the source, and relinks only the outputs that
// depend on a freshly compiled object or do not exist yet. Staleness is
// carried entirely by file modification times.
package native
