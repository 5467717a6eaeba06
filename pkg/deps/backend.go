// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/forgebuild/forge/internal/shell"
)

// Backend kinds.
const (
	Git Kind = "git"
	Hg  Kind = "hg"
	Bzr Kind = "bzr"
	Svn Kind = "svn"
)

// Revision kinds. Only git understands branches and tags.
const (
	RevCommit RevKind = "rev"
	RevBranch RevKind = "branch"
	RevTag    RevKind = "tag"
)

type (
	// Kind names a version control backend.
	Kind string

	// RevKind says how a Revision value is interpreted.
	RevKind string

	// Version is a (major, minor) client version.
	Version struct {
		Major int
		Minor int
	}

	// Revision is the point a fetched checkout is moved to.
	Revision struct {
		Kind  RevKind
		Value string
	}

	// Backend is one record of the closed backend table.
	Backend struct {
		Kind       Kind
		Client     string
		MinVersion Version
		// versionPattern extracts (major, minor) from "<client> --version".
		versionPattern *regexp.Regexp
		revKinds       []RevKind
		clone          func(url, dir string) []string
		update         func(rev Revision) []string
	}

	// Source is where a missing dependency is fetched from.
	Source struct {
		Backend *Backend
		URL     string
		Rev     Revision
	}
)

var backends = map[Kind]*Backend{
	Git: {
		Kind:           Git,
		Client:         "git",
		MinVersion:     Version{1, 5},
		versionPattern: regexp.MustCompile(`git version (\d+)\.(\d+)`),
		revKinds:       []RevKind{RevCommit, RevBranch, RevTag},
		clone: func(url, dir string) []string {
			return []string{"git", "clone", "-n", url, dir}
		},
		update: func(rev Revision) []string {
			if rev.Kind == RevBranch {
				return []string{"git", "checkout", "-q", "origin/" + rev.Value}
			}
			return []string{"git", "checkout", "-q", rev.Value}
		},
	},
	Hg: {
		Kind:           Hg,
		Client:         "hg",
		MinVersion:     Version{1, 5},
		versionPattern: regexp.MustCompile(`version (\d+)\.(\d+)`),
		revKinds:       []RevKind{RevCommit},
		clone: func(url, dir string) []string {
			return []string{"hg", "clone", "-U", url, dir}
		},
		update: func(rev Revision) []string {
			return []string{"hg", "update", rev.Value}
		},
	},
	Bzr: {
		Kind:           Bzr,
		Client:         "bzr",
		MinVersion:     Version{2, 0},
		versionPattern: regexp.MustCompile(`Bazaar \(bzr\) (\d+)\.(\d+)`),
		revKinds:       []RevKind{RevCommit},
		clone: func(url, dir string) []string {
			return []string{"bzr", "branch", "--no-tree", url, dir}
		},
		update: func(rev Revision) []string {
			return []string{"bzr", "update", "-r", rev.Value}
		},
	},
	Svn: {
		Kind:           Svn,
		Client:         "svn",
		MinVersion:     Version{1, 6},
		versionPattern: regexp.MustCompile(`svn, version (\d+)\.(\d+)`),
		revKinds:       []RevKind{RevCommit},
		clone: func(url, dir string) []string {
			return []string{"svn", "checkout", "--depth", "empty", url, dir}
		},
		update: func(rev Revision) []string {
			return []string{"svn", "update", "-r", rev.Value}
		},
	},
}

// LookupBackend returns the backend registered for kind.
func LookupBackend(kind Kind) (*Backend, bool) {
	b, ok := backends[kind]
	return b, ok
}

// Kinds returns every backend kind in a stable order.
func Kinds() []Kind {
	return []Kind{Git, Hg, Bzr, Svn}
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// AtLeast compares the (major, minor) tuples lexically.
func (v Version) AtLeast(min Version) bool {
	if v.Major != min.Major {
		return v.Major > min.Major
	}
	return v.Minor >= min.Minor
}

// ParseVersion extracts the client version from "<client> --version" output.
func (b *Backend) ParseVersion(output string) (Version, bool) {
	m := b.versionPattern.FindStringSubmatch(output)
	if m == nil {
		return Version{}, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

// Accepts reports whether the backend understands revisions of kind k.
func (b *Backend) Accepts(k RevKind) bool {
	return slices.Contains(b.revKinds, k)
}

func (r Revision) String() string {
	return string(r.Kind) + " " + r.Value
}

// CloneLine is the command line that clones s into dir without updating a
// working tree. It runs from dir's parent.
func (s *Source) CloneLine(dir string) (string, error) {
	return shell.Quote(s.Backend.clone(s.URL, dir)...)
}

// UpdateLine is the command line, run inside the clone, that moves it to
// the declared revision.
func (s *Source) UpdateLine() (string, error) {
	return shell.Quote(s.Backend.update(s.Rev)...)
}

func (s *Source) String() string {
	return fmt.Sprintf("%s %s (%s)", s.Backend.Kind, s.URL, s.Rev)
}
