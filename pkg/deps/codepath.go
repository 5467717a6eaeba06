// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"os"
	"slices"
	"strings"
	"sync"
)

// CodePath is the ordered list of directories searched for compiled package
// artifacts. Appending a directory already present is a no-op.
type CodePath struct {
	mu   sync.Mutex
	dirs []string
}

// NewCodePath creates a code path seeded with dirs.
func NewCodePath(dirs ...string) *CodePath {
	c := &CodePath{}
	for _, d := range dirs {
		c.Add(d)
	}
	return c
}

// Add appends dir and reports whether it was new.
func (c *CodePath) Add(dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.dirs, dir) {
		return false
	}
	c.dirs = append(c.dirs, dir)
	return true
}

// Dirs returns a copy of the path.
func (c *CodePath) Dirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.dirs)
}

// String joins the path with the OS list separator.
func (c *CodePath) String() string {
	return strings.Join(c.Dirs(), string(os.PathListSeparator))
}
