// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Package: {
	name:    string
	version: string
	jobs:    int & >=1 | *1
	tags?:   [...string]
}
`

type testPackage struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Jobs    int      `json:"jobs"`
	Tags    []string `json:"tags,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid data with defaults", func(t *testing.T) {
		t.Parallel()

		data := []byte(`
name:    "sqlite_drv"
version: "1.2.0"
tags: ["native"]
`)
		result, err := ParseAndDecode[testPackage]([]byte(testSchema), data, "#Package")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Name != "sqlite_drv" || result.Value.Version != "1.2.0" {
			t.Errorf("decoded = %+v", result.Value)
		}
		if result.Value.Jobs != 1 {
			t.Errorf("Jobs = %d, want default 1", result.Value.Jobs)
		}
		if len(result.Value.Tags) != 1 || result.Value.Tags[0] != "native" {
			t.Errorf("Tags = %v", result.Value.Tags)
		}
	})

	t.Run("constraint violation names the field", func(t *testing.T) {
		t.Parallel()

		data := []byte(`
name:    "x"
version: "1"
jobs:    0
`)
		_, err := ParseAndDecode[testPackage]([]byte(testSchema), data, "#Package", WithFilename("forge.cue"))
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "forge.cue") || !strings.Contains(err.Error(), "jobs") {
			t.Errorf("error should name file and field, got: %v", err)
		}
	})

	t.Run("missing required field fails concrete validation", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testPackage]([]byte(testSchema), []byte(`name: "x"`), "#Package")
		if err == nil {
			t.Fatal("expected error for missing version")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testPackage]([]byte(testSchema), []byte(`name: "x`), "#Package", WithFilename("bad.cue"))
		if err == nil || !strings.Contains(err.Error(), "bad.cue") {
			t.Errorf("expected syntax error naming bad.cue, got %v", err)
		}
	})

	t.Run("file too large", func(t *testing.T) {
		t.Parallel()

		data := []byte(`name: "` + strings.Repeat("a", 64) + `"`)
		_, err := ParseAndDecode[testPackage]([]byte(testSchema), data, "#Package", WithMaxFileSize(16))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("expected size error, got %v", err)
		}
	})

	t.Run("unknown definition", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testPackage]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Errorf("expected internal error, got %v", err)
		}
	})
}

func TestLookupStrings(t *testing.T) {
	t.Parallel()

	data := []byte(`
name:    "json"
version: "0.9.1"
port: sources: 42 // not validated here
`)

	got, err := LookupStrings(data, []string{"name", "version"}, WithFilename("deps/json/forge.cue"))
	if err != nil {
		t.Fatalf("LookupStrings() error = %v", err)
	}
	if got[0] != "json" || got[1] != "0.9.1" {
		t.Errorf("LookupStrings() = %v", got)
	}

	_, err = LookupStrings([]byte(`name: "x"`), []string{"name", "version"})
	if !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("missing field error = %v, want ErrFieldNotFound", err)
	}

	_, err = LookupStrings([]byte(`name: 3`), []string{"name"})
	if !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("non-string field error = %v, want ErrFieldNotFound", err)
	}
}
