// SPDX-License-Identifier: MPL-2.0

package deps

type (
	// Manifest is the identity an installed package declares for itself.
	Manifest struct {
		// Path is the manifest file the identity was read from.
		Path    string
		Name    string
		Version string
	}

	// MetadataReader reads installed package manifests. The resolver never
	// parses manifests itself.
	MetadataReader interface {
		// ReadManifest returns the manifest of the package in dir. ok is false
		// when dir is not a package directory; err reports a manifest that
		// exists but cannot be read.
		ReadManifest(dir string) (m Manifest, ok bool, err error)
	}
)
