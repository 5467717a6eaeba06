// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"runtime"
	"strconv"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Descriptor identifies the platform native code is built for.
type Descriptor struct {
	OS       string
	Arch     string
	WordBits int
}

// Host returns the descriptor of the running process.
func Host() Descriptor {
	return Descriptor{OS: runtime.GOOS, Arch: runtime.GOARCH, WordBits: strconv.IntSize}
}

// String renders the descriptor matched by architecture gates.
func (d Descriptor) String() string {
	return d.OS + "-" + d.Arch + "-" + strconv.Itoa(d.WordBits)
}

// SharedLibExt returns the shared object extension, without the dot.
func (d Descriptor) SharedLibExt() string {
	if d.OS == Windows {
		return "dll"
	}
	return "so"
}
