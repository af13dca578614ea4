// Package pathtemplate turns index field values and an output pattern into a
// concrete file path.
package pathtemplate

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/constants"
)

// Key normalizes a field name into its pattern token: lowercase, spaces to underscores.
func Key(fieldName string) string {
	return strings.ReplaceAll(strings.ToLower(fieldName), " ", "_")
}

// Substitutions builds the token map for fields. Blank values become "unknown".
// folder_name and file_name are present even when no field provides them.
func Substitutions(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for name, value := range fields {
		v := strings.TrimSpace(value)
		if v == "" {
			v = constants.UnknownFieldValue
		}
		out[Key(name)] = v
	}
	if _, ok := out["folder_name"]; !ok {
		out["folder_name"] = constants.DefaultFolderName
	}
	if _, ok := out["file_name"]; !ok {
		out["file_name"] = constants.DefaultFileName
	}
	return out
}

// Resolve substitutes {key} tokens of pattern and joins the result onto baseDir.
// A token naming a key absent from the map makes the whole pattern fall back to
// baseDir/folder_name/file_name. Resolve never fails.
func Resolve(pattern string, fields map[string]string, baseDir string) string {
	subs := Substitutions(fields)
	rel, ok := substitute(pattern, subs)
	if !ok {
		return filepath.Join(baseDir, subs["folder_name"], subs["file_name"])
	}
	return filepath.Join(baseDir, rel)
}

// Preview resolves pattern against a neutral base and returns the relative part.
func Preview(pattern string, fields map[string]string) string {
	const base = "/output"
	resolved := Resolve(pattern, fields, base)
	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return resolved
	}
	return rel
}

// Keys lists the tokens referenced by pattern in order of appearance.
func Keys(pattern string) []string {
	var keys []string
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			return keys
		}
		end := strings.IndexByte(pattern[start+1:], '}')
		if end < 0 {
			return keys
		}
		keys = append(keys, pattern[start+1:start+1+end])
		pattern = pattern[start+end+2:]
	}
}

// Missing returns the tokens of pattern that fields (plus defaults) cannot satisfy.
func Missing(pattern string, fields map[string]string) []string {
	subs := Substitutions(fields)
	var out []string
	for _, k := range Keys(pattern) {
		if _, ok := subs[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// substitute replaces every {key}. A '{' with no closing brace is kept literally.
func substitute(pattern string, subs map[string]string) (string, bool) {
	var b strings.Builder
	b.Grow(len(pattern))
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			b.WriteString(pattern)
			return b.String(), true
		}
		end := strings.IndexByte(pattern[start+1:], '}')
		if end < 0 {
			b.WriteString(pattern)
			return b.String(), true
		}
		key := pattern[start+1 : start+1+end]
		val, ok := subs[key]
		if !ok {
			return "", false
		}
		b.WriteString(pattern[:start])
		b.WriteString(val)
		pattern = pattern[start+end+2:]
	}
}
