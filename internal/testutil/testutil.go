// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MustMkdirAll creates a directory along with any necessary parents.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// SetMtime sets both access and modification time of path.
func SetMtime(t testing.TB, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime of %s: %v", path, err)
	}
}

// Mtime returns the modification time of path.
func Mtime(t testing.TB, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat %s: %v", path, err)
	}
	return info.ModTime()
}

// PackageDescriptor renders a minimal forge.cue for an installed package.
func PackageDescriptor(name, version string) string {
	return fmt.Sprintf("name:    %q\nversion: %q\n", name, version)
}

// WritePackage creates dir as an installed package named name at version.
func WritePackage(t testing.TB, dir, name, version string) {
	t.Helper()
	MustWriteFile(t, filepath.Join(dir, "forge.cue"), PackageDescriptor(name, version))
}
