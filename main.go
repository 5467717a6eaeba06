// SPDX-License-Identifier: MPL-2.0

// Command forge resolves project dependencies and builds native code.
package main

import cmd "github.com/forgebuild/forge/cmd/forge"

func main() {
	cmd.Execute()
}
