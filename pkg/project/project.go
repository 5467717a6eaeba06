// SPDX-License-Identifier: MPL-2.0

package project

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/pkg/cueutil"
	"github.com/forgebuild/forge/pkg/deps"
	"github.com/forgebuild/forge/pkg/native"
)

// DescriptorName is the file name of a project descriptor.
const DescriptorName = "forge.cue"

//go:embed project_schema.cue
var projectSchema []byte

var (
	// ErrNotFound is returned when a directory holds no descriptor.
	ErrNotFound = errors.New("project descriptor not found")
	// ErrInvalid is returned for a descriptor that fails to parse or validate.
	ErrInvalid = errors.New("invalid project descriptor")
)

type (
	// Project is a parsed forge.cue.
	Project struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		// DepsDir overrides the configured project-local dependency directory.
		DepsDir string `json:"deps_dir,omitempty"`
		// Deps holds the raw declarations, normalized by deps.Normalize.
		Deps []any `json:"deps,omitempty"`
		Port *Port `json:"port,omitempty"`

		// Dir is the directory holding the descriptor.
		Dir string `json:"-"`
	}

	// Port describes the native build.
	Port struct {
		Sources       []string          `json:"sources,omitempty"`
		Env           []native.EnvVar   `json:"env,omitempty"`
		SoName        string            `json:"so_name,omitempty"`
		SoSpecs       []native.LinkSpec `json:"so_specs,omitempty"`
		PreScript     *native.Script    `json:"pre_script,omitempty"`
		CleanupScript string            `json:"cleanup_script,omitempty"`
	}
)

// Load reads and parses the descriptor in dir.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, DescriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read project descriptor at %s: %w", path, err)
	}

	p, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	p.Dir = dir
	return p, nil
}

// Parse parses descriptor content. path is used in error messages and to
// set Dir.
func Parse(data []byte, path string) (*Project, error) {
	result, err := cueutil.ParseAndDecode[Project](projectSchema, data, "#Project", cueutil.WithFilename(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p := result.Value
	p.Dir = filepath.Dir(path)
	return p, nil
}

// DepsPath returns the project-local dependency directory: the project's
// own setting, else configured, else deps.DefaultDepsDir. Relative paths
// resolve against the project directory.
func (p *Project) DepsPath(configured string) string {
	dir := p.DepsDir
	if dir == "" {
		dir = configured
	}
	if dir == "" {
		dir = deps.DefaultDepsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(p.Dir, dir)
}

// Native returns the native build configuration.
func (p *Project) Native() native.Config {
	cfg := native.Config{Name: p.Name}
	if p.Port == nil {
		return cfg
	}
	cfg.Sources = p.Port.Sources
	cfg.SoName = p.Port.SoName
	cfg.SoSpecs = p.Port.SoSpecs
	cfg.PreScript = p.Port.PreScript
	cfg.CleanupScript = p.Port.CleanupScript
	return cfg
}

// EnvOverrides returns the project's environment entries, applied after
// the defaults.
func (p *Project) EnvOverrides() []native.EnvVar {
	if p.Port == nil {
		return nil
	}
	return p.Port.Env
}

// LoadDeclarations returns the dependency declarations of the package in
// dir. A directory without a descriptor declares nothing.
func LoadDeclarations(dir string) ([]any, error) {
	p, err := Load(dir)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.Deps, nil
}

var _ deps.DescriptorLoader = LoadDeclarations
