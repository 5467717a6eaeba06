// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultDepsDir is the project-local dependency directory name.
const DefaultDepsDir = "deps"

type (
	// Options configures a Resolver.
	Options struct {
		// LibDirs are the system-wide installed-package roots, probed in order.
		LibDirs []string
		// DepsDir is the project-local dependency directory.
		DepsDir string
		// Reader reads installed package manifests.
		Reader MetadataReader
		// Fetcher fetches missing dependencies. Required by Fetch and Walk.
		Fetcher *Fetcher
		// CodePath receives every available dependency's directory. A new
		// empty path is created when nil.
		CodePath *CodePath
		Logger   *log.Logger
	}

	// Resolver classifies declared dependencies and drives fetching.
	Resolver struct {
		libDirs  []string
		depsDir  string
		reader   MetadataReader
		fetcher  *Fetcher
		codePath *CodePath
		logger   *log.Logger
	}
)

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		libDirs:  opts.LibDirs,
		depsDir:  opts.DepsDir,
		reader:   opts.Reader,
		fetcher:  opts.Fetcher,
		codePath: opts.CodePath,
		logger:   opts.Logger,
	}
	if r.depsDir == "" {
		r.depsDir = DefaultDepsDir
	}
	if r.codePath == nil {
		r.codePath = NewCodePath()
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// CodePath returns the code path available dependencies are added to.
func (r *Resolver) CodePath() *CodePath {
	return r.codePath
}

// DepsDir returns the project-local dependency directory.
func (r *Resolver) DepsDir() string {
	return r.depsDir
}

// Classify normalizes decls and splits them, in declaration order, into
// available and missing dependencies. Each available dependency's directory
// is appended to the code path; each missing one has Dir set to its fetch
// target under DepsDir. A malformed declaration aborts before anything is
// classified.
func (r *Resolver) Classify(ctx context.Context, decls []any) (available, missing []Dependency, err error) {
	normalized, err := Normalize(decls)
	if err != nil {
		return nil, nil, err
	}

	for _, d := range normalized {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		dir, found, err := r.locate(d)
		if err != nil {
			return nil, nil, err
		}
		if found {
			d.Dir = dir
			available = append(available, d)
			r.codePath.Add(dir)
			r.logger.Info("dependency available", "app", d.App, "dir", dir)
			continue
		}
		d.Dir = filepath.Join(r.depsDir, d.App)
		missing = append(missing, d)
		r.logger.Debug("dependency missing", "app", d.App, "target", d.Dir)
	}
	return available, missing, nil
}

// Verify classifies decls and fails with a *MissingDependenciesError naming
// every missing dependency.
func (r *Resolver) Verify(ctx context.Context, decls []any) error {
	_, missing, err := r.Classify(ctx, decls)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &MissingDependenciesError{Deps: missing}
	}
	return nil
}

// Fetch fetches every missing dependency, sequentially, and returns the
// ones fetched. Dependencies without a source are all reported in one
// *MissingDependenciesError before anything is fetched. The first fetch
// failure aborts the phase and no partial record is returned.
func (r *Resolver) Fetch(ctx context.Context, missing []Dependency) (Record, error) {
	var unfetchable []Dependency
	for _, d := range missing {
		if d.Source == nil {
			unfetchable = append(unfetchable, d)
		}
	}
	if len(unfetchable) > 0 {
		return Record{}, &MissingDependenciesError{Deps: unfetchable}
	}
	if len(missing) == 0 {
		return Record{}, nil
	}
	if r.fetcher == nil {
		return Record{}, errors.New("no fetcher configured")
	}

	var rec Record
	for _, d := range missing {
		if err := r.fetcher.Fetch(ctx, d); err != nil {
			return Record{}, fmt.Errorf("failed to fetch %s: %w", d.App, err)
		}
		r.codePath.Add(d.Dir)
		rec.Add(d)
	}
	return rec, nil
}

// Delete removes every available dependency that lives under DepsDir and
// returns them. System-wide packages are never touched.
func (r *Resolver) Delete(ctx context.Context, decls []any) ([]Dependency, error) {
	available, _, err := r.Classify(ctx, decls)
	if err != nil {
		return nil, err
	}

	var deleted []Dependency
	for _, d := range available {
		if !r.IsLocal(d) {
			r.logger.Debug("keeping system-wide dependency", "app", d.App, "dir", d.Dir)
			continue
		}
		if err := os.RemoveAll(d.Dir); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", d.Dir, err)
		}
		r.logger.Info("deleted dependency", "app", d.App, "dir", d.Dir)
		deleted = append(deleted, d)
	}
	return deleted, nil
}

// IsLocal reports whether d's directory lies under DepsDir.
func (r *Resolver) IsLocal(d Dependency) bool {
	rel, err := filepath.Rel(r.depsDir, d.Dir)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// locate probes LibDirs, then DepsDir, for a package satisfying d.
func (r *Resolver) locate(d Dependency) (string, bool, error) {
	for _, root := range r.libDirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, fmt.Errorf("failed to read library root %s: %w", root, err)
		}
		// ReadDir sorts entries by name, so the lexically first match wins.
		for _, e := range entries {
			name := e.Name()
			if name != d.App && !strings.HasPrefix(name, d.App+"-") {
				continue
			}
			dir := filepath.Join(root, name)
			if r.satisfies(d, dir) {
				return dir, true, nil
			}
		}
	}

	local := filepath.Join(r.depsDir, d.App)
	if r.satisfies(d, local) {
		return local, true, nil
	}
	return "", false, nil
}

func (r *Resolver) satisfies(d Dependency, dir string) bool {
	m, ok, err := r.reader.ReadManifest(dir)
	if err != nil {
		r.logger.Warn("unreadable package manifest", "dir", dir, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if !d.Matches(m) {
		r.logger.Debug("package does not satisfy declaration", "dir", dir, "name", m.Name, "version", m.Version, "want", d.Constraint)
		return false
	}
	return true
}
