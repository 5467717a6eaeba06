// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/forgebuild/forge/internal/testutil"
	"github.com/forgebuild/forge/pkg/deps"
	"github.com/forgebuild/forge/pkg/project"
)

func TestScaffold_TemplatesParse(t *testing.T) {
	t.Parallel()

	for _, tmpl := range []string{"default", "minimal"} {
		t.Run(tmpl, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			res, err := scaffold(dir, "mydrv", tmpl, false)
			if err != nil {
				t.Fatalf("scaffold() error = %v", err)
			}
			want := []string{"forge.cue", filepath.Join("c_src", "mydrv.c")}
			if !slices.Equal(res.written, want) {
				t.Errorf("written = %v, want %v", res.written, want)
			}

			p, err := project.Load(dir)
			if err != nil {
				t.Fatalf("generated descriptor does not load: %v", err)
			}
			if p.Name != "mydrv" {
				t.Errorf("Name = %q, want mydrv", p.Name)
			}
			if _, err := deps.Normalize(p.Deps); err != nil {
				t.Errorf("generated deps do not normalize: %v", err)
			}

			src, err := os.ReadFile(filepath.Join(dir, "c_src", "mydrv.c"))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(src), "mydrv_init") {
				t.Errorf("source does not define mydrv_init:\n%s", src)
			}
		})
	}
}

func TestScaffold_SkipsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "forge.cue"), "// mine\n")

	res, err := scaffold(dir, "mydrv", "default", false)
	if err != nil {
		t.Fatalf("scaffold() error = %v", err)
	}
	if !slices.Equal(res.skipped, []string{"forge.cue"}) {
		t.Errorf("skipped = %v, want [forge.cue]", res.skipped)
	}
	if !slices.Equal(res.written, []string{filepath.Join("c_src", "mydrv.c")}) {
		t.Errorf("written = %v", res.written)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "forge.cue"))
	if string(data) != "// mine\n" {
		t.Errorf("existing file overwritten: %q", data)
	}

	res, err = scaffold(dir, "mydrv", "default", true)
	if err != nil {
		t.Fatalf("forced scaffold() error = %v", err)
	}
	if len(res.skipped) != 0 || len(res.written) != 2 {
		t.Errorf("forced result = %+v, want both files written", res)
	}
}

func TestScaffold_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pkg      string
		template string
		want     error
	}{
		{"reserved name", "aux", "default", ErrInvalidPackageName},
		{"reserved with extension", "com1.drv", "default", ErrInvalidPackageName},
		{"leading digit", "9lives", "default", ErrInvalidPackageName},
		{"dash", "my-drv", "default", ErrInvalidPackageName},
		{"empty", "", "default", ErrInvalidPackageName},
		{"unknown template", "mydrv", "full", ErrUnknownTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			_, err := scaffold(dir, tt.pkg, tt.template, false)
			if !errors.Is(err, tt.want) {
				t.Fatalf("scaffold() error = %v, want %v", err, tt.want)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("rejected scaffold wrote %d entries", len(entries))
			}
		})
	}
}
