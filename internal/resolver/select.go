package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// SelectCandidate picks the target of a pending relationship among the
// definitions sharing its callee name. It returns false when nothing fits.
//
// Bindings are never targets. Kind-compatible candidates win over the rest
// when any exist. Ties are broken, in order, by same language as the caller,
// a file named by one of the caller's imports, the caller's directory, then
// path, line and id. The result depends only on its inputs.
func SelectCandidate(p *model.PendingRelationship, caller *storage.CallerFile, cands []storage.Candidate) (storage.Candidate, bool) {
	var defs, compatible []storage.Candidate
	accept := compatibleKinds(p.Kind)
	for _, c := range cands {
		if c.Kind.IsBinding() || c.ID == p.FromSymbolID {
			continue
		}
		defs = append(defs, c)
		if accept(c.Kind) {
			compatible = append(compatible, c)
		}
	}
	if len(compatible) > 0 {
		defs = compatible
	}
	if len(defs) == 0 {
		return storage.Candidate{}, false
	}
	if len(defs) == 1 {
		return defs[0], true
	}

	var (
		lang    string
		dir     = path.Dir(p.FilePath)
		imports []string
	)
	if caller != nil {
		lang = caller.Language
		for _, imp := range caller.Imports {
			if src := normalizeImport(imp.Source, dir); src != "" {
				imports = append(imports, src)
			}
		}
	}

	type ranked struct {
		c        storage.Candidate
		sameLang bool
		imported bool
		sameDir  bool
	}
	rs := make([]ranked, len(defs))
	for i, c := range defs {
		rs[i] = ranked{
			c:        c,
			sameLang: lang != "" && c.Language == lang,
			imported: matchesImport(c.FilePath, imports),
			sameDir:  path.Dir(c.FilePath) == dir,
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.sameLang != b.sameLang {
			return a.sameLang
		}
		if a.imported != b.imported {
			return a.imported
		}
		if a.sameDir != b.sameDir {
			return a.sameDir
		}
		if a.c.FilePath != b.c.FilePath {
			return a.c.FilePath < b.c.FilePath
		}
		if a.c.StartLine != b.c.StartLine {
			return a.c.StartLine < b.c.StartLine
		}
		return a.c.ID < b.c.ID
	})
	return rs[0].c, true
}

func compatibleKinds(kind model.RelationshipKind) func(model.SymbolKind) bool {
	switch kind {
	case model.RelCalls:
		return func(k model.SymbolKind) bool { return k.IsCallable() || k.IsType() }
	case model.RelExtends, model.RelImplements:
		return func(k model.SymbolKind) bool { return k.IsType() }
	}
	return func(model.SymbolKind) bool { return true }
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".rs": true, ".java": true, ".c": true, ".h": true,
	".php": true, ".rb": true,
}

// normalizeImport turns an import source into a slash path comparable with
// workspace file paths. Relative sources are resolved against the caller's
// directory; Python's leading dots climb packages.
func normalizeImport(src, callerDir string) string {
	src = strings.TrimSpace(strings.Trim(src, `"'<>`))
	if src == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../"):
		src = path.Join(callerDir, src)
	case strings.HasPrefix(src, "."):
		// Python relative import: one dot is the current package.
		dots := len(src) - len(strings.TrimLeft(src, "."))
		rest := strings.ReplaceAll(src[dots:], ".", "/")
		base := callerDir
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		src = path.Join(base, rest)
	default:
		src = strings.NewReplacer("::", "/", "\\", "/").Replace(src)
		if ext := path.Ext(src); !sourceExtensions[ext] {
			src = strings.ReplaceAll(src, ".", "/")
		}
	}

	if ext := path.Ext(src); sourceExtensions[ext] {
		src = strings.TrimSuffix(src, ext)
	}
	for _, prefix := range []string{"crate/", "self/", "super/"} {
		src = strings.TrimPrefix(src, prefix)
	}
	return strings.Trim(path.Clean(src), "/")
}

// matchesImport reports whether a candidate file is what one of the imports
// names: the file (without extension) or its directory is a segment suffix of
// the import, or the import is a segment suffix of either.
func matchesImport(file string, imports []string) bool {
	if len(imports) == 0 {
		return false
	}
	noExt := strings.TrimSuffix(file, path.Ext(file))
	dir := path.Dir(file)
	for _, imp := range imports {
		for _, p := range []string{noExt, dir} {
			if p == "." || p == "" {
				continue
			}
			if segmentSuffix(imp, p) || segmentSuffix(p, imp) {
				return true
			}
		}
	}
	return false
}

// segmentSuffix reports whether suffix equals s or ends s at a '/' boundary.
func segmentSuffix(s, suffix string) bool {
	if s == suffix {
		return true
	}
	return strings.HasSuffix(s, "/"+suffix)
}
