// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"fmt"
)

// DescriptorLoader returns the dependency declarations of the package in dir.
type DescriptorLoader func(dir string) ([]any, error)

// Walk resolves decls and, recursively, the declarations of every
// project-local dependency: it classifies, fetches what is missing, then
// loads each local dependency's own declarations and repeats. Each
// application is visited once. The returned Record holds every dependency
// fetched along the way; the code path holds every available one.
func (r *Resolver) Walk(ctx context.Context, decls []any, load DescriptorLoader) (Record, error) {
	visited := make(map[string]bool)
	var all Record
	if err := r.walk(ctx, decls, load, visited, &all); err != nil {
		return Record{}, err
	}
	return all, nil
}

func (r *Resolver) walk(ctx context.Context, decls []any, load DescriptorLoader, visited map[string]bool, all *Record) error {
	available, missing, err := r.Classify(ctx, decls)
	if err != nil {
		return err
	}

	rec, err := r.Fetch(ctx, missing)
	if err != nil {
		return err
	}

	var next []Dependency
	for _, d := range available {
		if r.IsLocal(d) {
			next = append(next, d)
		}
	}
	fetched := rec.Collect()
	next = append(next, fetched...)
	for _, d := range fetched {
		all.Add(d)
	}

	for _, d := range next {
		if visited[d.App] {
			continue
		}
		visited[d.App] = true

		nested, err := load(d.Dir)
		if err != nil {
			return fmt.Errorf("failed to load declarations of %s: %w", d.App, err)
		}
		if len(nested) == 0 {
			continue
		}
		r.logger.Debug("resolving nested dependencies", "app", d.App, "count", len(nested))
		if err := r.walk(ctx, nested, load, visited, all); err != nil {
			return fmt.Errorf("%s: %w", d.App, err)
		}
	}
	return nil
}
