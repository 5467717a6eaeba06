// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: filesystem fixtures that fail the
// test on error (MustWriteFile, MustMkdirAll, SetMtime, WritePackage) and
// FakeRunner, a recording shell.Runner whose behavior is scripted per
// command line.
package testutil
