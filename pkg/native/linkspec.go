// SPDX-License-Identifier: MPL-2.0

package native

import (
	"path/filepath"

	"github.com/forgebuild/forge/pkg/platform"
)

// PrivDir holds default link outputs, relative to the project directory.
const PrivDir = "priv"

type (
	// LinkSpec names one shared object and the objects linked into it.
	LinkSpec struct {
		Output  string   `json:"output"`
		Objects []string `json:"objects"`
	}

	// Script is a pre-build step guarded by a sentinel file. The script runs
	// only while the sentinel is absent and must create it.
	Script struct {
		Script   string `json:"script"`
		Sentinel string `json:"sentinel"`
	}

	// Config is the native section of a project.
	Config struct {
		// Name is the package name, used for the default output.
		Name string
		// Sources are glob patterns relative to the project directory.
		// Empty means DefaultSources.
		Sources []string
		// SoName replaces the default output file name.
		SoName string
		// SoSpecs replace the default link spec entirely.
		SoSpecs       []LinkSpec
		PreScript     *Script
		CleanupScript string
	}
)

// DefaultOutput returns priv/<name>_drv.<ext>, or priv/<soName> when set.
func DefaultOutput(name, soName string, p platform.Descriptor) string {
	if soName != "" {
		return filepath.Join(PrivDir, soName)
	}
	return filepath.Join(PrivDir, name+"_drv."+p.SharedLibExt())
}

// LinkSpecs returns the configured link specs, or a single default spec
// linking every object.
func (c Config) LinkSpecs(objects []string, p platform.Descriptor) []LinkSpec {
	if len(c.SoSpecs) > 0 {
		specs := make([]LinkSpec, len(c.SoSpecs))
		for i, s := range c.SoSpecs {
			objs := make([]string, len(s.Objects))
			for j, o := range s.Objects {
				objs[j] = filepath.FromSlash(o)
			}
			specs[i] = LinkSpec{Output: filepath.FromSlash(s.Output), Objects: objs}
		}
		return specs
	}
	if len(objects) == 0 {
		return nil
	}
	return []LinkSpec{{
		Output:  DefaultOutput(c.Name, c.SoName, p),
		Objects: append([]string(nil), objects...),
	}}
}

// SourcePatterns returns the configured source globs, or DefaultSources.
func (c Config) SourcePatterns() []string {
	if len(c.Sources) == 0 {
		return DefaultSources
	}
	return c.Sources
}
