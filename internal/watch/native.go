// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/pkg/native"
)

// headerPatterns trigger a rebuild without being compiled themselves.
var headerPatterns = []string{"**/*.h", "**/*.hh", "**/*.hpp"}

// NativePatterns derives watch and ignore patterns from a project's native
// build configuration. Source globs outside dir are dropped, and build
// outputs are ignored so a relink does not retrigger itself.
func NativePatterns(dir string, cfg native.Config) (patterns, ignore []string) {
	for _, p := range cfg.SourcePatterns() {
		if filepath.IsAbs(p) {
			rel, err := filepath.Rel(dir, p)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			p = rel
		}
		patterns = append(patterns, filepath.ToSlash(p))
	}
	patterns = append(patterns, headerPatterns...)

	ignore = []string{native.PrivDir + "/**"}
	for _, spec := range cfg.SoSpecs {
		ignore = append(ignore, filepath.ToSlash(spec.Output))
	}
	return patterns, ignore
}
