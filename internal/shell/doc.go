// SPDX-License-Identifier: MPL-2.0

// Package shell runs external tool command lines (version control clients,
// the C/C++ toolchain, project scripts) through the mvdan.cc/sh interpreter.
//
// Command lines are POSIX shell text: variable references such as $CC or
// $CFLAGS are expanded from the Command's environment and split into words
// by the interpreter, so callers only quote literal arguments (see Quote).
package shell
