// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/pkg/cueutil"
	"github.com/forgebuild/forge/pkg/deps"
)

// ManifestReader reads the name and version of installed packages from
// their forge.cue.
type ManifestReader struct{}

var _ deps.MetadataReader = ManifestReader{}

// ReadManifest implements deps.MetadataReader. A directory without a
// descriptor, or a path that is not a directory, is not a package.
func (ManifestReader) ReadManifest(dir string) (deps.Manifest, bool, error) {
	path := filepath.Join(dir, DescriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return deps.Manifest{}, false, nil
		}
		return deps.Manifest{}, false, fmt.Errorf("failed to read manifest: %w", err)
	}

	vals, err := cueutil.LookupStrings(data, []string{"name", "version"}, cueutil.WithFilename(path))
	if err != nil {
		return deps.Manifest{}, false, err
	}
	return deps.Manifest{Path: path, Name: vals[0], Version: vals[1]}, true, nil
}

// isNotDir reports a read through a path component that is a regular file.
func isNotDir(err error) bool {
	var pe *fs.PathError
	if !errors.As(err, &pe) {
		return false
	}
	info, statErr := os.Stat(filepath.Dir(pe.Path))
	return statErr == nil && !info.IsDir()
}
