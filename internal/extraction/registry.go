package extraction

import (
	"path"
	"sort"
	"strings"
)

// Registry maps file extensions to extractors. Extractors hold no per-file
// state, so one registry is shared by every Pass-1 worker.
type Registry struct {
	byExt  map[string]Extractor
	byLang map[string]Extractor
}

// NewRegistry returns a registry with every built-in language.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:  make(map[string]Extractor),
		byLang: make(map[string]Extractor),
	}

	js := newJavaScriptExtractor()
	ts := newTypeScriptExtractor(false)
	tsx := newTypeScriptExtractor(true)

	r.Register(newGoExtractor(), ".go")
	r.Register(newPythonExtractor(), ".py", ".pyi")
	r.Register(js, ".js", ".jsx", ".mjs", ".cjs")
	r.Register(ts, ".ts", ".mts", ".cts")
	r.registerExt(tsx, ".tsx")
	r.Register(newRustExtractor(), ".rs")
	r.Register(newJavaExtractor(), ".java")
	r.Register(newCExtractor(), ".c", ".h")
	r.Register(newPHPExtractor(), ".php")
	r.Register(newRubyExtractor(), ".rb")
	return r
}

// Register binds an extractor to its language name and the given extensions.
func (r *Registry) Register(ex Extractor, exts ...string) {
	r.byLang[ex.Language()] = ex
	r.registerExt(ex, exts...)
}

func (r *Registry) registerExt(ex Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = ex
	}
}

// ForPath returns the extractor for a file path by extension.
func (r *Registry) ForPath(p string) (Extractor, bool) {
	ex, ok := r.byExt[strings.ToLower(path.Ext(p))]
	return ex, ok
}

// ForLanguage returns the extractor registered under a language name.
func (r *Registry) ForLanguage(lang string) (Extractor, bool) {
	ex, ok := r.byLang[lang]
	return ex, ok
}

// LanguageOf returns the language name for a path, or "" when unsupported.
func (r *Registry) LanguageOf(p string) string {
	if ex, ok := r.ForPath(p); ok {
		return ex.Language()
	}
	return ""
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
