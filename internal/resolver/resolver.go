// Package resolver implements Pass 2: promoting pending relationships to
// resolved edges once every file's symbols are known.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/mvp-joe/symgraph/internal/storage"
)

// Store is the slice of the persistent store Pass 2 needs.
type Store interface {
	RunResolution(ctx context.Context, fn func(rt *storage.ResolutionTx) error) error
}

// Scope selects the pending relationships a run revisits. All wins over the
// other fields. Otherwise a row is in scope when its callee name is listed or
// it originates in a listed file.
type Scope struct {
	All         bool
	CalleeNames []string
	FilePaths   []string
}

// Empty reports whether the scope selects nothing.
func (s Scope) Empty() bool {
	return !s.All && len(s.CalleeNames) == 0 && len(s.FilePaths) == 0
}

// Stats summarizes one resolution run.
type Stats struct {
	Considered int `json:"considered"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	// Changed counts rows whose target differs from what was stored.
	Changed int `json:"changed"`
}

// Resolver runs Pass 2 against a store.
type Resolver struct {
	store Store
}

// New creates a resolver.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve re-evaluates every pending relationship in scope and writes the
// outcome. The whole run is one store transaction under the writer lock, so
// it sees a consistent name index and never interleaves with a file commit.
// Running it twice over an unchanged store changes nothing.
func (r *Resolver) Resolve(ctx context.Context, scope Scope) (*Stats, error) {
	stats := &Stats{}
	if scope.Empty() {
		return stats, nil
	}

	err := r.store.RunResolution(ctx, func(rt *storage.ResolutionTx) error {
		pending, err := rt.Pending(ctx, storage.PendingQuery{
			All:         scope.All,
			CalleeNames: scope.CalleeNames,
			FilePaths:   scope.FilePaths,
		})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		// A full run indexes every name; a scoped run only what it needs.
		var names []string
		if !scope.All {
			names = calleeNames(pending)
		}
		index, err := rt.NameIndex(ctx, names)
		if err != nil {
			return err
		}
		callers, err := rt.ImportsByFile(ctx, callerPaths(pending))
		if err != nil {
			return err
		}

		resolutions := make([]storage.Resolution, 0, len(pending))
		for _, p := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Considered++

			var target string
			if c, ok := SelectCandidate(&p.PendingRelationship, callers[p.FilePath], index[p.CalleeName]); ok {
				target = c.ID
				stats.Resolved++
			} else {
				stats.Unresolved++
			}
			if target != p.ResolvedTo {
				stats.Changed++
			}
			if target == "" && p.ResolvedTo == "" {
				continue
			}
			resolutions = append(resolutions, storage.Resolution{Pending: p, Target: target})
		}
		return rt.Apply(ctx, resolutions)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve relationships: %w", err)
	}
	return stats, nil
}

func calleeNames(pending []storage.PendingRecord) []string {
	seen := make(map[string]bool, len(pending))
	var out []string
	for _, p := range pending {
		if !seen[p.CalleeName] {
			seen[p.CalleeName] = true
			out = append(out, p.CalleeName)
		}
	}
	sort.Strings(out)
	return out
}

func callerPaths(pending []storage.PendingRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range pending {
		if !seen[p.FilePath] {
			seen[p.FilePath] = true
			out = append(out, p.FilePath)
		}
	}
	sort.Strings(out)
	return out
}
