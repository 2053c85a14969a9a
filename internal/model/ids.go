package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// SymbolID derives the stable id of a symbol from its identity, not its location.
// parentChain lists enclosing symbol names outermost first. ordinal is 0 for the
// first declaration of (kind, parentChain, name) in the file and n for the n-th repeat.
func SymbolID(filePath string, kind SymbolKind, parentChain []string, name string, ordinal int) string {
	h := sha256.New()
	fmt.Fprintf(h, "file:%s\n", filePath)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "parents:%s\n", strings.Join(parentChain, "\x1f"))
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "ordinal:%d\n", ordinal)
	return hex.EncodeToString(h.Sum(nil))
}

// RelationshipID derives the id of a resolved edge.
func RelationshipID(from, to string, kind RelationshipKind, filePath string, line int) string {
	h := sha256.New()
	fmt.Fprintf(h, "from:%s\n", from)
	fmt.Fprintf(h, "to:%s\n", to)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "file:%s\n", filePath)
	fmt.Fprintf(h, "line:%d\n", line)
	return hex.EncodeToString(h.Sum(nil))
}

// PendingID derives the id of an unresolved edge. Two calls to the same name from
// the same caller on the same line collapse into one pending edge.
func PendingID(from, callee string, kind RelationshipKind, filePath string, line int) string {
	h := sha256.New()
	fmt.Fprintf(h, "from:%s\n", from)
	fmt.Fprintf(h, "callee:%s\n", callee)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "file:%s\n", filePath)
	fmt.Fprintf(h, "line:%d\n", line)
	return hex.EncodeToString(h.Sum(nil))
}

// IdentifierID derives the id of a usage site.
func IdentifierID(filePath string, kind IdentifierKind, name string, startByte int) string {
	h := sha256.New()
	fmt.Fprintf(h, "file:%s\n", filePath)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "start:%d\n", startByte)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the SHA-256 hex digest used for change detection.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizePath converts a path relative to root into the stored form:
// workspace-relative and forward-slash separated on every platform.
func NormalizePath(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return "", fmt.Errorf("failed to relativize %s: %w", p, err)
		}
		p = rel
	}
	p = path.Clean(filepath.ToSlash(p))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("path %s is outside the workspace", p)
	}
	return strings.TrimPrefix(p, "./"), nil
}
