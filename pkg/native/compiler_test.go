// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/forgebuild/forge/internal/shell"
	"github.com/forgebuild/forge/internal/testutil"
	"github.com/forgebuild/forge/pkg/platform"
)

var linux64 = platform.Descriptor{OS: platform.Linux, Arch: "amd64", WordBits: 64}

// newProject writes files under a fresh directory, dated an hour ago.
func newProject(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		testutil.MustWriteFile(t, p, "/* "+f+" */\n")
		testutil.SetMtime(t, p, past)
	}
	return dir
}

func toolchain() *testutil.FakeRunner {
	return (&testutil.FakeRunner{}).
		On("$CC", testutil.TouchOutput()).
		On("$CXX", testutil.TouchOutput())
}

func newTestBuilder(dir string, cfg Config, runner shell.Runner, jobs int) *Builder {
	if cfg.Name == "" {
		cfg.Name = "demo"
	}
	return NewBuilder(Options{Dir: dir, Config: cfg, Runner: runner, Platform: linux64, Jobs: jobs})
}

func compileLine(src, obj string) string {
	return "$CC -c $CFLAGS $DRV_CFLAGS " + src + " -o " + obj
}

func TestCompile_FromScratch(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c", "c_src/b.c")
	runner := toolchain()

	report, err := newTestBuilder(dir, Config{}, runner, 1).Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := []string{
		compileLine("c_src/a.c", "c_src/a.o"),
		compileLine("c_src/b.c", "c_src/b.o"),
		"$CC c_src/a.o c_src/b.o $LDFLAGS $DRV_LDFLAGS -o priv/demo_drv.so",
	}
	if got := runner.Lines(); !slices.Equal(got, want) {
		t.Errorf("commands =\n%v\nwant\n%v", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if !slices.Equal(report.Compiled, []string{"c_src/a.c", "c_src/b.c"}) {
		t.Errorf("Compiled = %v", report.Compiled)
	}
	if !slices.Equal(report.Linked, []string{filepath.Join("priv", "demo_drv.so")}) {
		t.Errorf("Linked = %v", report.Linked)
	}
	for _, c := range runner.Calls() {
		if c.Dir != dir {
			t.Errorf("command %q ran in %q, want %q", c.Line, c.Dir, dir)
		}
	}
}

func TestCompile_OnlyStaleSourcesRebuild(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c", "c_src/b.c")
	runner := toolchain()
	b := newTestBuilder(dir, Config{}, runner, 1)
	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatalf("first Compile() error = %v", err)
	}

	t0 := time.Now().Add(-time.Hour)
	t1 := t0.Add(10 * time.Minute)
	for _, f := range []string{"c_src/a.o", "c_src/b.o", "priv/demo_drv.so"} {
		testutil.SetMtime(t, filepath.Join(dir, filepath.FromSlash(f)), t1)
	}
	testutil.SetMtime(t, filepath.Join(dir, "c_src", "a.c"), t1.Add(time.Minute))
	runner.Reset()

	report, err := b.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := []string{
		compileLine("c_src/a.c", "c_src/a.o"),
		"$CC c_src/a.o c_src/b.o $LDFLAGS $DRV_LDFLAGS -o priv/demo_drv.so",
	}
	if got := runner.Lines(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
	if !slices.Equal(report.UpToDate, []string{"c_src/b.c"}) {
		t.Errorf("UpToDate = %v", report.UpToDate)
	}
}

func TestCompile_NothingToDo(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := toolchain()
	b := newTestBuilder(dir, Config{}, runner, 1)
	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	runner.Reset()

	report, err := b.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if lines := runner.Lines(); len(lines) != 0 {
		t.Errorf("commands = %v, want none", lines)
	}
	if len(report.Skipped) != 1 || len(report.Linked) != 0 {
		t.Errorf("report = %+v, want one skipped output", report)
	}
}

func TestCompile_MissingOutputRelinks(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := toolchain()
	b := newTestBuilder(dir, Config{}, runner, 1)
	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "priv", "demo_drv.so")); err != nil {
		t.Fatal(err)
	}
	runner.Reset()

	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got := runner.Lines(); len(got) != 1 || !strings.HasPrefix(got[0], "$CC c_src/a.o") {
		t.Errorf("commands = %v, want a single link", got)
	}
}

func TestCompile_CompileFailureAborts(t *testing.T) {
	t.Parallel()

	for _, jobs := range []int{1, 4} {
		dir := newProject(t, "c_src/a.c", "c_src/b.c", "c_src/c.c")
		runner := (&testutil.FakeRunner{}).
			On(compileLine("c_src/b.c", "c_src/b.o"), testutil.Fail(1, "b.c:1: error")).
			On("$CC", testutil.TouchOutput())

		_, err := newTestBuilder(dir, Config{}, runner, jobs).Compile(context.Background())
		if !errors.Is(err, ErrCompileFailed) {
			t.Fatalf("jobs=%d: Compile() error = %v, want ErrCompileFailed", jobs, err)
		}
		var ce *CompileError
		if !errors.As(err, &ce) || ce.Source != "c_src/b.c" {
			t.Errorf("jobs=%d: error = %v, want CompileError for c_src/b.c", jobs, err)
		}
		var exit *shell.ExitError
		if !errors.As(err, &exit) || exit.Code != 1 {
			t.Errorf("jobs=%d: error = %v, want wrapped exit status 1", jobs, err)
		}
		if n := runner.Count("$CC c_src/"); n != 0 {
			t.Errorf("jobs=%d: link ran %d times after compile failure", jobs, n)
		}
	}
}

func TestCompile_LinkFailure(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := (&testutil.FakeRunner{}).
		On("$CC c_src/", testutil.Fail(1, "undefined reference")).
		On("$CC", testutil.TouchOutput())

	_, err := newTestBuilder(dir, Config{}, runner, 1).Compile(context.Background())
	if !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Compile() error = %v, want ErrLinkFailed", err)
	}
}

func TestCompile_CXXSources(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/glue.cpp", "c_src/core.c")
	runner := toolchain()
	cfg := Config{Sources: []string{"c_src/*.cpp", "c_src/*.c"}}

	if _, err := newTestBuilder(dir, cfg, runner, 1).Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	lines := runner.Lines()
	if len(lines) != 3 {
		t.Fatalf("commands = %v, want 3", lines)
	}
	if want := "$CXX -c $CXXFLAGS $DRV_CFLAGS c_src/glue.cpp -o c_src/glue.o"; lines[0] != want {
		t.Errorf("commands[0] = %q, want %q", lines[0], want)
	}
	if want := compileLine("c_src/core.c", "c_src/core.o"); lines[1] != want {
		t.Errorf("commands[1] = %q, want %q", lines[1], want)
	}
}

func TestCompile_DistinctObjectsCompileOnce(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c", "c_src/a.cc", "c_src/b.c")
	runner := toolchain()
	cfg := Config{Sources: []string{"c_src/*.c", "c_src/a.c", "c_src/*.cc"}}

	report, err := newTestBuilder(dir, cfg, runner, 1).Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if n := runner.Count("$CC -c"); n != 2 {
		t.Errorf("C compilations = %d, want 2", n)
	}
	if n := runner.Count("$CXX"); n != 0 {
		t.Errorf("C++ compilations = %d, want 0", n)
	}
	if want := "$CC c_src/a.o c_src/b.o $LDFLAGS $DRV_LDFLAGS -o priv/demo_drv.so"; !slices.Contains(runner.Lines(), want) {
		t.Errorf("commands = %v, missing %q", runner.Lines(), want)
	}
	if !slices.Equal(report.Compiled, []string{"c_src/a.c", "c_src/b.c"}) {
		t.Errorf("Compiled = %v", report.Compiled)
	}
}

func TestCompile_Parallel(t *testing.T) {
	t.Parallel()

	files := []string{"c_src/a.c", "c_src/b.c", "c_src/c.c", "c_src/d.c", "c_src/e.c", "c_src/f.c"}
	dir := newProject(t, files...)
	runner := toolchain()

	report, err := newTestBuilder(dir, Config{}, runner, 4).Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	lines := runner.Lines()
	if len(lines) != len(files)+1 {
		t.Fatalf("commands = %v, want %d", lines, len(files)+1)
	}
	for _, f := range files {
		obj := strings.TrimSuffix(f, ".c") + ".o"
		if n := runner.Count(compileLine(f, obj)); n != 1 {
			t.Errorf("%s compiled %d times", f, n)
		}
	}
	if !strings.HasPrefix(lines[len(lines)-1], "$CC c_src/a.o c_src/b.o") {
		t.Errorf("last command = %q, want the link", lines[len(lines)-1])
	}
	if !slices.Equal(report.Compiled, files) {
		t.Errorf("Compiled = %v, want %v", report.Compiled, files)
	}
}

func TestCompile_NoSources(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	runner := toolchain()

	report, err := newTestBuilder(dir, Config{}, runner, 1).Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(runner.Lines()) != 0 || len(report.Linked) != 0 {
		t.Errorf("expected no work, got commands %v report %+v", runner.Lines(), report)
	}
}

func TestCompile_SoSpecs(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c", "c_src/b.c")
	runner := toolchain()
	cfg := Config{SoSpecs: []LinkSpec{
		{Output: "priv/a.so", Objects: []string{"c_src/a.o"}},
		{Output: "priv/b.so", Objects: []string{"c_src/b.o"}},
	}}
	b := newTestBuilder(dir, cfg, runner, 1)
	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}

	t1 := time.Now().Add(-30 * time.Minute)
	for _, f := range []string{"c_src/a.o", "c_src/b.o", "priv/a.so", "priv/b.so"} {
		testutil.SetMtime(t, filepath.Join(dir, filepath.FromSlash(f)), t1)
	}
	testutil.SetMtime(t, filepath.Join(dir, "c_src", "b.c"), t1.Add(time.Minute))
	runner.Reset()

	report, err := b.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !slices.Equal(report.Linked, []string{filepath.Join("priv", "b.so")}) {
		t.Errorf("Linked = %v, want [priv/b.so]", report.Linked)
	}
	if !slices.Equal(report.Skipped, []string{filepath.Join("priv", "a.so")}) {
		t.Errorf("Skipped = %v, want [priv/a.so]", report.Skipped)
	}
}

func TestCompile_SoSpecsObjectSpelling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		object func(dir string) string
	}{
		{"dot prefix", func(string) string { return "./c_src/a.o" }},
		{"double slash", func(string) string { return "c_src//a.o" }},
		{"absolute", func(dir string) string { return filepath.Join(dir, "c_src", "a.o") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := newProject(t, "c_src/a.c")
			runner := toolchain()
			cfg := Config{SoSpecs: []LinkSpec{{Output: "priv/x.so", Objects: []string{tt.object(dir)}}}}
			b := newTestBuilder(dir, cfg, runner, 1)
			if _, err := b.Compile(context.Background()); err != nil {
				t.Fatal(err)
			}

			t1 := time.Now().Add(-30 * time.Minute)
			testutil.SetMtime(t, filepath.Join(dir, "c_src", "a.o"), t1)
			testutil.SetMtime(t, filepath.Join(dir, "priv", "x.so"), t1)
			testutil.SetMtime(t, filepath.Join(dir, "c_src", "a.c"), t1.Add(time.Minute))
			runner.Reset()

			report, err := b.Compile(context.Background())
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if len(report.Compiled) != 1 {
				t.Errorf("Compiled = %v, want the edited source", report.Compiled)
			}
			if !slices.Equal(report.Linked, []string{filepath.Join("priv", "x.so")}) {
				t.Errorf("Linked = %v, want [priv/x.so]", report.Linked)
			}
			if len(report.Skipped) != 0 {
				t.Errorf("Skipped = %v, want none", report.Skipped)
			}
		})
	}
}

func TestCompile_SoName(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := toolchain()

	report, err := newTestBuilder(dir, Config{SoName: "custom.so"}, runner, 1).Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Linked, []string{filepath.Join("priv", "custom.so")}) {
		t.Errorf("Linked = %v", report.Linked)
	}
}

func TestCompile_PassesEnvironment(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := toolchain()
	env, err := Compose(linux64.String(), DefaultEnv(Defaults{Platform: linux64}))
	if err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(Options{Dir: dir, Config: Config{Name: "demo"}, Env: env, Runner: runner, Platform: linux64})
	if _, err := b.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, c := range runner.Calls() {
		if !slices.Contains(c.Env, "CC=cc") || !slices.Contains(c.Env, "DRV_CFLAGS=-g -Wall -fPIC ") {
			t.Errorf("command %q env = %v", c.Line, c.Env)
		}
	}
}

func TestCompile_PreScript(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := (&testutil.FakeRunner{}).
		On("./configure", func(cmd shell.Command) (string, error) {
			return "", os.WriteFile(filepath.Join(cmd.Dir, "config.done"), nil, 0o644)
		}).
		On("$CC", testutil.TouchOutput())
	cfg := Config{PreScript: &Script{Script: "./configure", Sentinel: "config.done"}}
	b := newTestBuilder(dir, cfg, runner, 1)

	for range 2 {
		if _, err := b.Compile(context.Background()); err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
	}
	if n := runner.Count("./configure"); n != 1 {
		t.Errorf("pre-build script ran %d times, want 1", n)
	}
	if lines := runner.Lines(); lines[0] != "./configure" {
		t.Errorf("first command = %q, want the pre-build script", lines[0])
	}
}

func TestCompile_PreScriptWithoutSentinel(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	runner := toolchain()
	cfg := Config{PreScript: &Script{Script: "./configure", Sentinel: "config.done"}}

	_, err := newTestBuilder(dir, cfg, runner, 1).Compile(context.Background())
	if !errors.Is(err, ErrScriptFailed) {
		t.Fatalf("Compile() error = %v, want ErrScriptFailed", err)
	}
	if n := runner.Count("$CC"); n != 0 {
		t.Errorf("compiler ran %d times after script failure", n)
	}
}

func TestCompile_Cancelled(t *testing.T) {
	t.Parallel()

	dir := newProject(t, "c_src/a.c")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBuilder(dir, Config{}, toolchain(), 1).Compile(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Compile() error = %v, want context.Canceled", err)
	}
}
