// Package classify maps file paths to content categories and languages.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

var categoryByExt = map[string]models.ContentCategory{
	"rs": models.ContentSourceCode, "py": models.ContentSourceCode, "js": models.ContentSourceCode,
	"ts": models.ContentSourceCode, "java": models.ContentSourceCode, "cpp": models.ContentSourceCode,
	"c": models.ContentSourceCode, "h": models.ContentSourceCode, "go": models.ContentSourceCode,

	"md": models.ContentDocumentation, "txt": models.ContentDocumentation, "rst": models.ContentDocumentation,

	"json": models.ContentConfiguration, "yaml": models.ContentConfiguration, "yml": models.ContentConfiguration,
	"toml": models.ContentConfiguration, "ini": models.ContentConfiguration, "conf": models.ContentConfiguration,

	"png": models.ContentImage, "jpg": models.ContentImage, "jpeg": models.ContentImage,
	"gif": models.ContentImage, "svg": models.ContentImage,
}

// Classify returns the content category for path. It never fails: unknown
// extensions fall back to Binary when the path looks binary, else Text.
func Classify(path string) models.ContentCategory {
	if c, ok := categoryByExt[ext(path)]; ok {
		return c
	}
	if strings.HasSuffix(path, ".bin") || strings.Contains(path, "binary") {
		return models.ContentBinary
	}
	return models.ContentText
}

var languageByExt = map[string]string{
	"go": "Go", "rs": "Rust", "py": "Python", "js": "JavaScript", "ts": "TypeScript",
	"java": "Java", "cpp": "C++", "c": "C", "h": "C", "rb": "Ruby", "sh": "Shell",
	"md": "Markdown", "rst": "reStructuredText",
	"json": "JSON", "yaml": "YAML", "yml": "YAML", "toml": "TOML",
	"html": "HTML", "css": "CSS", "sql": "SQL",
}

// Language returns a display language name for path, or "" when unknown.
func Language(path string) string {
	return languageByExt[ext(path)]
}

// LanguageFractions returns each known language's share of paths. Paths with
// no known language count toward the total but get no entry.
func LanguageFractions(paths []string) map[string]float64 {
	out := make(map[string]float64)
	if len(paths) == 0 {
		return out
	}
	counts := make(map[string]int)
	for _, p := range paths {
		if lang := Language(p); lang != "" {
			counts[lang]++
		}
	}
	for lang, n := range counts {
		out[lang] = float64(n) / float64(len(paths))
	}
	return out
}

func ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
