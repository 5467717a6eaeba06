// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/forgebuild/forge/internal/testutil"
)

type fixture struct {
	root    string
	libDir  string
	depsDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root:    root,
		libDir:  filepath.Join(root, "lib"),
		depsDir: filepath.Join(root, "project", "deps"),
	}
	testutil.MustMkdirAll(t, f.libDir)
	testutil.MustMkdirAll(t, f.depsDir)
	return f
}

func (f fixture) resolver(fetcher *Fetcher) *Resolver {
	return NewResolver(Options{
		LibDirs: []string{f.libDir},
		DepsDir: f.depsDir,
		Reader:  cueReader{},
		Fetcher: fetcher,
	})
}

func TestResolver_Classify(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.WritePackage(t, filepath.Join(f.libDir, "stdlib_ext-1.4.0"), "stdlib_ext", "1.4.0")
	testutil.WritePackage(t, filepath.Join(f.depsDir, "json"), "json", "0.9.1")
	// Wrong name inside a correctly named directory.
	testutil.WritePackage(t, filepath.Join(f.depsDir, "yaml"), "not_yaml", "1.0.0")
	// Directory without a descriptor.
	testutil.MustMkdirAll(t, filepath.Join(f.depsDir, "bare"))
	// Version outside the constraint.
	testutil.WritePackage(t, filepath.Join(f.depsDir, "old"), "old", "0.1.0")

	decls := []any{
		"stdlib_ext",
		[]any{"json", "^0\\.9"},
		"yaml",
		"bare",
		[]any{"old", "^1\\."},
		[]any{"remote", ".*", map[string]any{"git": "https://example.com/remote.git", "rev": "abc"}},
	}

	r := f.resolver(nil)
	available, missing, err := r.Classify(context.Background(), decls)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if len(available)+len(missing) != len(decls) {
		t.Fatalf("classified %d+%d, want %d", len(available), len(missing), len(decls))
	}

	wantAvailable := map[string]string{
		"stdlib_ext": filepath.Join(f.libDir, "stdlib_ext-1.4.0"),
		"json":       filepath.Join(f.depsDir, "json"),
	}
	for _, d := range available {
		if wantAvailable[d.App] != d.Dir {
			t.Errorf("available %s in %q, want %q", d.App, d.Dir, wantAvailable[d.App])
		}
	}

	var missingApps []string
	for _, d := range missing {
		missingApps = append(missingApps, d.App)
		if d.Dir != filepath.Join(f.depsDir, d.App) {
			t.Errorf("missing %s target = %q", d.App, d.Dir)
		}
	}
	if want := []string{"yaml", "bare", "old", "remote"}; !slices.Equal(missingApps, want) {
		t.Errorf("missing = %v, want %v (declaration order)", missingApps, want)
	}

	wantPath := []string{filepath.Join(f.libDir, "stdlib_ext-1.4.0"), filepath.Join(f.depsDir, "json")}
	if got := r.CodePath().Dirs(); !slices.Equal(got, wantPath) {
		t.Errorf("CodePath = %v, want %v", got, wantPath)
	}

	// Classification is deterministic and does not repeat code path entries.
	available2, missing2, err := r.Classify(context.Background(), decls)
	if err != nil {
		t.Fatal(err)
	}
	if len(available2) != len(available) || len(missing2) != len(missing) {
		t.Error("second classification differs")
	}
	if got := r.CodePath().Dirs(); len(got) != 2 {
		t.Errorf("CodePath after second pass = %v", got)
	}
}

func TestResolver_Classify_LibDirOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	second := filepath.Join(f.root, "lib2")
	testutil.WritePackage(t, filepath.Join(f.libDir, "ssl-2.0"), "ssl", "2.0")
	testutil.WritePackage(t, filepath.Join(f.libDir, "ssl-1.0"), "ssl", "1.0")
	testutil.WritePackage(t, filepath.Join(second, "ssl"), "ssl", "3.0")
	testutil.WritePackage(t, filepath.Join(f.depsDir, "ssl"), "ssl", "1.5")
	// Name prefix without the separator is not a candidate.
	testutil.WritePackage(t, filepath.Join(f.libDir, "sslx"), "ssl", "9.9")

	r := NewResolver(Options{
		LibDirs: []string{filepath.Join(f.root, "absent"), f.libDir, second},
		DepsDir: f.depsDir,
		Reader:  cueReader{},
	})

	tests := []struct {
		constraint string
		wantDir    string
	}{
		{".*", filepath.Join(f.libDir, "ssl-1.0")},
		{"^2", filepath.Join(f.libDir, "ssl-2.0")},
		{"^3", filepath.Join(second, "ssl")},
		{"^1\\.5", filepath.Join(f.depsDir, "ssl")},
	}
	for _, tt := range tests {
		available, _, err := r.Classify(context.Background(), []any{[]any{"ssl", tt.constraint}})
		if err != nil {
			t.Fatal(err)
		}
		if len(available) != 1 || available[0].Dir != tt.wantDir {
			t.Errorf("constraint %q resolved to %v, want %s", tt.constraint, available, tt.wantDir)
		}
	}
}

func TestResolver_Classify_InvalidAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.WritePackage(t, filepath.Join(f.depsDir, "ok"), "ok", "1")
	r := f.resolver(nil)

	available, missing, err := r.Classify(context.Background(), []any{"ok", 3.5})
	if !errors.Is(err, ErrInvalidDeclaration) {
		t.Fatalf("Classify() error = %v, want ErrInvalidDeclaration", err)
	}
	if available != nil || missing != nil {
		t.Error("no dependency should be classified")
	}
	if len(r.CodePath().Dirs()) != 0 {
		t.Error("code path should be untouched")
	}
}

func TestResolver_Verify(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.WritePackage(t, filepath.Join(f.depsDir, "have"), "have", "1.0")
	r := f.resolver(nil)

	if err := r.Verify(context.Background(), []any{"have"}); err != nil {
		t.Errorf("Verify() with everything present = %v", err)
	}

	err := r.Verify(context.Background(), []any{"have", "gone", gitDecl("later", ".*", "https://example.com/later.git")})
	var missingErr *MissingDependenciesError
	if !errors.As(err, &missingErr) {
		t.Fatalf("Verify() error = %v, want *MissingDependenciesError", err)
	}
	if !errors.Is(err, ErrMissingDependencies) {
		t.Error("error should wrap ErrMissingDependencies")
	}
	if len(missingErr.Deps) != 2 || missingErr.Deps[0].App != "gone" || missingErr.Deps[1].App != "later" {
		t.Errorf("missing = %v, want gone and later", missingErr.Deps)
	}
}

func TestResolver_Fetch_BatchesUnfetchable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	runner := &testutil.FakeRunner{}
	fetcher := NewFetcher(FetcherOptions{Runner: runner, Probe: NewProbe(runner, onPath, nil), Reader: cueReader{}, Backoff: -1})
	r := f.resolver(fetcher)

	_, missing, err := r.Classify(context.Background(), []any{"a", gitDecl("b", ".*", "https://example.com/b.git"), "c"})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := r.Fetch(context.Background(), missing)
	var missingErr *MissingDependenciesError
	if !errors.As(err, &missingErr) {
		t.Fatalf("Fetch() error = %v, want *MissingDependenciesError", err)
	}
	if len(missingErr.Deps) != 2 {
		t.Errorf("reported %d deps, want a and c", len(missingErr.Deps))
	}
	if rec.Len() != 0 {
		t.Error("record should be empty on failure")
	}
	if calls := runner.Lines(); len(calls) != 0 {
		t.Errorf("no external command should run, got %v", calls)
	}
}

func TestResolver_Fetch_RoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	runner := (&testutil.FakeRunner{}).
		On("git --version", testutil.Reply("git version 2.40.1")).
		On("git clone", clonePackage("b", "1.2.0"))
	fetcher := NewFetcher(FetcherOptions{Runner: runner, Probe: NewProbe(runner, onPath, nil), Reader: cueReader{}, Backoff: -1})
	r := NewResolver(Options{DepsDir: f.depsDir, Reader: cueReader{}, Fetcher: fetcher, CodePath: NewCodePath()})

	decls := []any{gitDecl("b", "^1\\.2", "https://example.com/b.git")}
	_, missing, err := r.Classify(context.Background(), decls)
	if err != nil || len(missing) != 1 {
		t.Fatalf("Classify() = %v, %v", missing, err)
	}

	rec, err := r.Fetch(context.Background(), missing)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	fetched := rec.Collect()
	if len(fetched) != 1 || fetched[0].App != "b" {
		t.Errorf("record = %v", fetched)
	}

	available, missing, err := r.Classify(context.Background(), decls)
	if err != nil || len(available) != 1 || len(missing) != 0 {
		t.Fatalf("re-classify = %v / %v / %v, want b available", available, missing, err)
	}

	// Nothing left to fetch: zero external invocations.
	runner.Reset()
	rec, err = r.Fetch(context.Background(), missing)
	if err != nil || rec.Len() != 0 || len(runner.Lines()) != 0 {
		t.Errorf("second Fetch() = %v, %v, calls %v", rec, err, runner.Lines())
	}
}

func TestResolver_Fetch_FirstFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	runner := (&testutil.FakeRunner{}).
		On("git --version", testutil.Reply("git version 2.40.1")).
		On("git clone -n https://example.com/a.git", clonePackage("a", "1")).
		On("hg --version", testutil.Reply("Mercurial Distributed SCM (version 1.4)"))
	fetcher := NewFetcher(FetcherOptions{Runner: runner, Probe: NewProbe(runner, onPath, nil), Reader: cueReader{}, Backoff: -1})
	r := f.resolver(fetcher)

	decls := []any{
		gitDecl("a", ".*", "https://example.com/a.git"),
		[]any{"b", ".*", map[string]any{"hg": "https://example.com/b", "rev": "tip"}},
		gitDecl("c", ".*", "https://example.com/c.git"),
	}
	_, missing, err := r.Classify(context.Background(), decls)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := r.Fetch(context.Background(), missing)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrToolUnavailable", err)
	}
	if rec.Len() != 0 {
		t.Error("no partial record on failure")
	}
	if runner.Count("git clone -n https://example.com/c.git") != 0 {
		t.Error("fetching must stop at the first failure")
	}
}

func TestResolver_Delete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sys := filepath.Join(f.libDir, "sys")
	local := filepath.Join(f.depsDir, "local")
	testutil.WritePackage(t, sys, "sys", "1")
	testutil.WritePackage(t, local, "local", "1")

	deleted, err := f.resolver(nil).Delete(context.Background(), []any{"sys", "local", "gone"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0].App != "local" {
		t.Errorf("deleted = %v, want local only", deleted)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Error("project-local dependency should be removed")
	}
	if _, err := os.Stat(sys); err != nil {
		t.Error("system-wide dependency must be kept")
	}
}

func TestResolver_IsLocal(t *testing.T) {
	t.Parallel()

	r := NewResolver(Options{DepsDir: "/p/deps", Reader: cueReader{}})
	tests := []struct {
		dir  string
		want bool
	}{
		{"/p/deps/a", true},
		{"/p/deps", false},
		{"/p/deps-old/a", false},
		{"/usr/lib/forge/a", false},
		{"/p/deps/../a", false},
	}
	for _, tt := range tests {
		if got := r.IsLocal(Dependency{Dir: tt.dir}); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}
