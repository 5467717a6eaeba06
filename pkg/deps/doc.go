// SPDX-License-Identifier: MPL-2.0

// Package deps resolves a project's declared dependencies.
//
// A declaration names an application, a regular expression its installed
// version must match, and optionally a version control source it can be
// fetched from. The Resolver classifies declarations as available or missing
// by probing the system-wide library roots and then the project-local deps
// directory; a directory only counts when the package's own descriptor
// carries the declared name and a matching version.
//
// Fetching is a separate, explicit phase. The Fetcher clones missing
// dependencies with the backend's command line client (git, hg, bzr or svn),
// moves them to the declared revision and re-verifies the result, retrying
// transient clone failures a bounded number of times. Fetched dependencies are
// returned in a Record, which Walk merges while recursing into each fetched
// dependency's own declarations.
package deps
