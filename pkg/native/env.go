// SPDX-License-Identifier: MPL-2.0

package native

import (
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/forgebuild/forge/pkg/platform"
)

// MaxExpandPasses bounds the cross-reference substitution of Compose.
const MaxExpandPasses = 10

type (
	// EnvVar is one environment entry. A non-empty Arch is a regular
	// expression the platform descriptor must match for the entry to apply.
	EnvVar struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		Arch  string `json:"arch,omitempty"`
	}

	// Env is a resolved build environment.
	Env struct {
		values map[string]string
	}

	// Defaults parameterizes DefaultEnv.
	Defaults struct {
		Platform   platform.Descriptor
		IncludeDir string
		CodePath   []string
	}
)

// Get returns the value of key.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns the defined keys in lexical order.
func (e Env) Keys() []string {
	return slices.Sorted(maps.Keys(e.values))
}

// Len reports the number of defined keys.
func (e Env) Len() int { return len(e.values) }

// Environ renders the environment as sorted KEY=VALUE lines.
func (e Env) Environ() []string {
	keys := e.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// ProcessEnv converts os.Environ-style lines into ungated entries. Lines
// without a key are skipped.
func ProcessEnv(environ []string) []EnvVar {
	out := make([]EnvVar, 0, len(environ))
	for _, line := range environ {
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		out = append(out, EnvVar{Key: k, Value: v})
	}
	return out
}

// DefaultEnv returns the toolchain defaults layered between the process
// environment and the project overrides.
func DefaultEnv(d Defaults) []EnvVar {
	forgeCFlags := ""
	if d.IncludeDir != "" {
		forgeCFlags = "-I$FORGE_INCLUDE_DIR"
	}
	return []EnvVar{
		{Key: "CC", Value: "cc"},
		{Key: "CXX", Value: "c++"},
		{Key: "CFLAGS", Value: "$CFLAGS"},
		{Key: "CXXFLAGS", Value: "$CXXFLAGS"},
		{Key: "LDFLAGS", Value: "$LDFLAGS"},
		{Key: "FORGE_INCLUDE_DIR", Value: d.IncludeDir},
		{Key: "FORGE_CFLAGS", Value: forgeCFlags},
		{Key: "FORGE_LDFLAGS", Value: ""},
		{Key: "DRV_CFLAGS", Value: "-g -Wall -fPIC $FORGE_CFLAGS"},
		{Key: "DRV_LDFLAGS", Value: "-shared $FORGE_LDFLAGS"},
		{Key: "DRV_LDFLAGS", Value: "-bundle -flat_namespace -undefined suppress $FORGE_LDFLAGS", Arch: "darwin"},
		{Key: "LDFLAGS", Value: "$LDFLAGS -lstdc++", Arch: "(linux|freebsd|solaris)"},
		{Key: "FORGE_ARCH", Value: strconv.Itoa(d.Platform.WordBits)},
		{Key: "FORGE_TARGET", Value: d.Platform.String()},
		{Key: "FORGE_CODE_PATH", Value: strings.Join(d.CodePath, string(os.PathListSeparator))},
	}
}

// Compose resolves sources, in order, into one environment for the
// platform descriptor arch. Gated entries that do not match arch are
// dropped. Each remaining entry replaces the previous value of its key,
// with references to the key itself expanded against that previous value.
// References between keys are then substituted until nothing changes.
// References to undefined keys are left as written.
func Compose(arch string, sources ...[]EnvVar) (Env, error) {
	values := make(map[string]string)

	for si, src := range sources {
		for i, v := range src {
			if v.Key == "" {
				return Env{}, &InvalidEnvVarError{Source: si, Index: i, Key: v.Key, Reason: "empty key"}
			}
			if v.Arch != "" {
				re, err := regexp.Compile(v.Arch)
				if err != nil {
					return Env{}, &InvalidEnvVarError{Source: si, Index: i, Key: v.Key, Reason: "invalid platform pattern: " + err.Error()}
				}
				if !re.MatchString(arch) {
					continue
				}
			}
			values[v.Key] = expandRef(v.Value, v.Key, values[v.Key])
		}
	}

	if err := expandAll(values); err != nil {
		return Env{}, err
	}
	return Env{values: values}, nil
}

func expandAll(values map[string]string) error {
	keys := slices.Sorted(maps.Keys(values))
	for pass := 1; pass <= MaxExpandPasses; pass++ {
		snapshot := maps.Clone(values)
		for _, k := range keys {
			for _, other := range keys {
				if other == k {
					continue
				}
				values[k] = expandRef(values[k], other, snapshot[other])
			}
		}
		if !maps.Equal(values, snapshot) {
			continue
		}

		var cyclic []string
		for _, k := range keys {
			if refersTo(values[k], k) {
				cyclic = append(cyclic, k)
			}
		}
		if len(cyclic) > 0 {
			return &NotConvergedError{Passes: pass, Keys: cyclic}
		}
		return nil
	}

	var changing []string
	for _, k := range keys {
		for _, other := range keys {
			if refersTo(values[k], other) {
				changing = append(changing, k)
				break
			}
		}
	}
	return &NotConvergedError{Passes: MaxExpandPasses, Keys: changing}
}

// expandRef replaces $key and ${key} in s with value. A bare $key only
// matches when the next byte cannot continue a name.
func expandRef(s, key, value string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}
		rest := s[i+1:]
		if strings.HasPrefix(rest, "{"+key+"}") {
			b.WriteString(value)
			i += len(key) + 3
			continue
		}
		if strings.HasPrefix(rest, key) && (len(rest) == len(key) || !isNameByte(rest[len(key)])) {
			b.WriteString(value)
			i += len(key) + 1
			continue
		}
		b.WriteByte('$')
		i++
	}
	return b.String()
}

func refersTo(s, key string) bool {
	return expandRef(s, key, "\x00") != s
}

func isNameByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
