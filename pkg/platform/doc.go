// SPDX-License-Identifier: MPL-2.0

// Package platform describes the build host.
//
// A Descriptor renders as "<os>-<arch>-<bits>" (for example
// "linux-amd64-64"); environment entries gated by a regular expression are
// matched against that string. The package also holds the file naming rules
// that differ between operating systems.
package platform
