// SPDX-License-Identifier: MPL-2.0

// Package project loads forge.cue project descriptors.
//
// A descriptor names the package, lists its dependency declarations and
// optionally describes the native port build:
//
//	name:    "myapp"
//	version: "0.1.0"
//	deps: [
//		"stdlib_ext",
//		["json", "1\\..*", {git: "https://example.com/json.git", tag: "v1.4.0"}],
//	]
//	port: {
//		sources: ["c_src/*.c"]
//		env: [{key: "CFLAGS", value: "$CFLAGS -O2"}]
//	}
//
// Installed packages carry a forge.cue too; ManifestReader reads only their
// name and version so that a package with an unrelated schema error still
// identifies itself.
package project
