// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// AnyVersion is the constraint used when a declaration gives none.
const AnyVersion = ".*"

// Dependency is one normalized declaration.
type Dependency struct {
	App string
	// Constraint is matched against the installed package's version string.
	Constraint *regexp.Regexp
	// Source is nil when the dependency cannot be fetched.
	Source *Source
	// Dir is assigned by classification: the package directory when
	// available, the fetch target when missing.
	Dir string
}

// Matches reports whether m identifies a package satisfying d.
func (d Dependency) Matches(m Manifest) bool {
	return m.Name == d.App && d.Constraint.MatchString(m.Version)
}

func (d Dependency) String() string {
	s := fmt.Sprintf("%s %q", d.App, d.Constraint.String())
	if d.Source != nil {
		s += " from " + d.Source.String()
	}
	return s
}

// Normalize turns descriptor declarations into dependencies, in order. The
// accepted shapes are:
//
//	"app"
//	["app"] | ["app", "regex"] | ["app", "regex", {source}]
//	{app: "app", version?: "regex", source?: {source}}
//
// where source is {<backend>: "URL", rev|branch|tag: "..."}. Any other
// shape, an invalid regex or a repeated app is an *InvalidDeclarationError
// and nothing is returned.
func Normalize(decls []any) ([]Dependency, error) {
	out := make([]Dependency, 0, len(decls))
	seen := make(map[string]bool, len(decls))
	for i, decl := range decls {
		d, reason := normalizeOne(decl)
		if reason != "" {
			return nil, &InvalidDeclarationError{Index: i, Decl: decl, Reason: reason}
		}
		if seen[d.App] {
			return nil, &InvalidDeclarationError{Index: i, Decl: decl, Reason: "duplicate application " + d.App}
		}
		seen[d.App] = true
		out = append(out, d)
	}
	return out, nil
}

func normalizeOne(decl any) (Dependency, string) {
	switch v := decl.(type) {
	case string:
		return build(v, AnyVersion, nil)
	case []any:
		if len(v) == 0 || len(v) > 3 {
			return Dependency{}, fmt.Sprintf("list form takes 1 to 3 elements, got %d", len(v))
		}
		app, ok := v[0].(string)
		if !ok {
			return Dependency{}, "application name must be a string"
		}
		version := AnyVersion
		if len(v) > 1 {
			if version, ok = v[1].(string); !ok {
				return Dependency{}, "version must be a string"
			}
		}
		var src any
		if len(v) > 2 {
			src = v[2]
		}
		return build(app, version, src)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if k != "app" && k != "version" && k != "source" {
				return Dependency{}, fmt.Sprintf("unknown field %q", k)
			}
		}
		app, ok := v["app"].(string)
		if !ok {
			return Dependency{}, "struct form requires a string app field"
		}
		version := AnyVersion
		if raw, present := v["version"]; present {
			if version, ok = raw.(string); !ok {
				return Dependency{}, "version must be a string"
			}
		}
		return build(app, version, v["source"])
	default:
		return Dependency{}, fmt.Sprintf("unsupported declaration type %T", decl)
	}
}

func build(app, version string, rawSource any) (Dependency, string) {
	if strings.TrimSpace(app) == "" {
		return Dependency{}, "application name is empty"
	}
	re, err := regexp.Compile(version)
	if err != nil {
		return Dependency{}, fmt.Sprintf("invalid version pattern: %v", err)
	}
	d := Dependency{App: app, Constraint: re}
	if rawSource == nil {
		return d, ""
	}
	src, reason := parseSource(rawSource)
	if reason != "" {
		return Dependency{}, reason
	}
	d.Source = src
	return d, ""
}

func parseSource(raw any) (*Source, string) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, "source must be a struct"
	}

	var (
		backend *Backend
		url     string
		rev     Revision
	)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		val, isString := m[k].(string)
		if !isString || val == "" {
			return nil, fmt.Sprintf("source field %q must be a non-empty string", k)
		}
		if b, known := LookupBackend(Kind(k)); known {
			if backend != nil {
				return nil, fmt.Sprintf("source names both %s and %s", backend.Kind, k)
			}
			backend, url = b, val
			continue
		}
		switch rk := RevKind(k); rk {
		case RevCommit, RevBranch, RevTag:
			if rev.Kind != "" {
				return nil, fmt.Sprintf("source gives both %s and %s", rev.Kind, rk)
			}
			rev = Revision{Kind: rk, Value: val}
		default:
			return nil, fmt.Sprintf("unknown source field %q (backends: git, hg, bzr, svn)", k)
		}
	}

	if backend == nil {
		return nil, "source names no backend (git, hg, bzr or svn)"
	}
	if rev.Kind == "" {
		return nil, "source requires one of rev, branch or tag"
	}
	if !backend.Accepts(rev.Kind) {
		return nil, fmt.Sprintf("%s sources accept rev only, got %s", backend.Kind, rev.Kind)
	}
	return &Source{Backend: backend, URL: url, Rev: rev}, ""
}
