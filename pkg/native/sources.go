// SPDX-License-Identifier: MPL-2.0

package native

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSources is the source pattern used when a project names none.
var DefaultSources = []string{"c_src/*.c"}

var cxxExts = map[string]bool{
	".cc":  true,
	".cp":  true,
	".cxx": true,
	".cpp": true,
	".CPP": true,
	".c++": true,
	".C":   true,
}

// SourceFile is one native source matched by a project's patterns.
type SourceFile struct {
	// Path is relative to the project directory unless the pattern was absolute.
	Path string
}

// ExpandSources matches patterns against dir. Matches keep pattern order,
// and each pattern's matches are in lexical order. Patterns support "**".
func ExpandSources(dir string, patterns []string) ([]SourceFile, error) {
	var out []SourceFile
	for _, pattern := range patterns {
		matches, err := globOne(dir, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			out = append(out, SourceFile{Path: m})
		}
	}
	return out, nil
}

func globOne(dir, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}
	matches, err := doublestar.Glob(os.DirFS(dir), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.FromSlash(m)
	}
	return matches, nil
}

// Object returns the object path derived from the source path.
func (s SourceFile) Object() string {
	return strings.TrimSuffix(s.Path, filepath.Ext(s.Path)) + ".o"
}

// IsCXX reports whether the source is compiled with the C++ compiler.
func (s SourceFile) IsCXX() bool {
	return cxxExts[filepath.Ext(s.Path)]
}

// Objects returns the distinct object paths of sources in first-seen order.
func Objects(sources []SourceFile) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		obj := s.Object()
		if seen[obj] {
			continue
		}
		seen[obj] = true
		out = append(out, obj)
	}
	return out
}
