package parser

import (
	"recast/internal/core/errors"
	"recast/internal/shared/util"
	"slices"
	"strings"
)

// LanguageSpec is one grammar the parser can load and the file extensions
// that select it.
type LanguageSpec struct {
	Name       string
	Extensions []string
	Enabled    bool
}

// LanguageOverride is the [languages.<id>] section of the configuration.
type LanguageOverride struct {
	Enabled    *bool
	Extensions []string
}

// DefaultLanguageRegistry lists every compiled-in grammar. Languages whose
// extensions are commonly shared with other tools start disabled.
func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"css":        {Name: "css", Extensions: []string{".css"}},
		"go":         {Name: "go", Extensions: []string{".go"}, Enabled: true},
		"html":       {Name: "html", Extensions: []string{".htm", ".html"}},
		"java":       {Name: "java", Extensions: []string{".java"}},
		"javascript": {Name: "javascript", Extensions: []string{".cjs", ".js", ".mjs"}, Enabled: true},
		"python":     {Name: "python", Extensions: []string{".py"}, Enabled: true},
		"rust":       {Name: "rust", Extensions: []string{".rs"}},
		"tsx":        {Name: "tsx", Extensions: []string{".tsx"}},
		"typescript": {Name: "typescript", Extensions: []string{".ts"}, Enabled: true},
	}
}

// BuildLanguageRegistry applies overrides to the defaults. An override for a
// language without a grammar is CodeNotSupported; two enabled languages
// claiming one extension is CodeInvalidArgument.
func BuildLanguageRegistry(overrides map[string]LanguageOverride) (map[string]LanguageSpec, error) {
	registry := cloneLanguageRegistry(DefaultLanguageRegistry())
	for _, id := range util.SortedStringKeys(overrides) {
		override := overrides[id]
		spec, ok := registry[id]
		if !ok {
			return nil, errors.Newf(errors.CodeNotSupported, "no grammar for language %q", id)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			spec.Extensions = normalizeExtensions(override.Extensions)
		}
		registry[id] = spec
	}

	owners := make(map[string]string)
	for _, id := range util.SortedStringKeys(registry) {
		spec := registry[id]
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			if prev, ok := owners[ext]; ok {
				return nil, errors.Newf(errors.CodeInvalidArgument, "extension %q claimed by both %q and %q", ext, prev, id)
			}
			owners[ext] = id
		}
	}
	return registry, nil
}

func cloneLanguageRegistry(in map[string]LanguageSpec) map[string]LanguageSpec {
	out := make(map[string]LanguageSpec, len(in))
	for id, spec := range in {
		spec.Extensions = slices.Clone(spec.Extensions)
		out[id] = spec
	}
	return out
}

// normalizeExtensions lowercases, dots, dedupes and sorts.
func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
