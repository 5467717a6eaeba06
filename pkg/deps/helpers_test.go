// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgebuild/forge/internal/shell"
	"github.com/forgebuild/forge/internal/testutil"
	"github.com/forgebuild/forge/pkg/cueutil"
)

// cueReader reads forge.cue name/version pairs, like the project package does.
type cueReader struct{}

func (cueReader) ReadManifest(dir string) (Manifest, bool, error) {
	path := filepath.Join(dir, "forge.cue")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, err
	}
	vals, err := cueutil.LookupStrings(data, []string{"name", "version"}, cueutil.WithFilename(path))
	if err != nil {
		return Manifest{}, false, err
	}
	return Manifest{Path: path, Name: vals[0], Version: vals[1]}, true, nil
}

func onPath(string) (string, error) { return "/usr/bin/tool", nil }

func notOnPath(name string) (string, error) { return "", errors.New(name + ": not found") }

// clonePackage returns a handler that plays a successful clone creating a
// package named name at version in the clone target.
func clonePackage(name, version string) testutil.Handler {
	return func(cmd shell.Command) (string, error) {
		fields := strings.Fields(cmd.Line)
		target := filepath.Join(cmd.Dir, fields[len(fields)-1])
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", err
		}
		return "", os.WriteFile(filepath.Join(target, "forge.cue"), []byte(testutil.PackageDescriptor(name, version)), 0o644)
	}
}

// failingClone leaves a partial directory behind and exits non-zero.
func failingClone(cmd shell.Command) (string, error) {
	fields := strings.Fields(cmd.Line)
	target := filepath.Join(cmd.Dir, fields[len(fields)-1])
	if err := os.MkdirAll(filepath.Join(target, ".git"), 0o755); err != nil {
		return "", err
	}
	return "", &shell.ExitError{Line: cmd.Line, Code: 128, Output: "fatal: early EOF"}
}

func gitDecl(app, version, url string) []any {
	return []any{app, version, map[string]any{"git": url, "branch": "main"}}
}
