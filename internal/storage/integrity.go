package storage

import (
	"context"
	"fmt"

	"github.com/mvp-joe/symgraph/internal/model"
)

// Observer is a derived symbol index kept outside SQLite. The store feeds it
// committed changes and rebuilds it when its count drifts from the symbols
// table.
type Observer interface {
	Name() string
	Index(ctx context.Context, symbols []*model.Symbol) error
	Remove(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Rebuild(ctx context.Context, symbols []*model.Symbol) error
}

// IntegrityReport is the outcome of VerifyIntegrity. Counts are taken before
// any rebuild.
type IntegrityReport struct {
	Symbols    int
	FTSRows    int
	Embeddings int
	Vectors    int
	Observers  map[string]int
	// Unembedded symbols have embeddable text but no vector yet. They are
	// backfill candidates, not inconsistencies.
	Unembedded int
	// Rebuilt names the derived indexes that were rebuilt.
	Rebuilt []string
}

// Consistent reports whether no rebuild was needed.
func (r *IntegrityReport) Consistent() bool { return len(r.Rebuilt) == 0 }

// VerifyIntegrity compares every derived index against its primary table and
// rebuilds the ones that differ. A failed rebuild is returned as an error: the
// store is not usable until it succeeds.
func (s *Store) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	report := &IntegrityReport{Observers: make(map[string]int)}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&report.Symbols); err != nil {
		return nil, fmt.Errorf("failed to count symbols: %w", err)
	}

	var err error
	if report.FTSRows, err = s.countFTS(ctx); err != nil {
		return nil, err
	}
	if report.FTSRows != report.Symbols {
		if err := s.rebuildFTS(ctx); err != nil {
			return nil, fmt.Errorf("failed to rebuild full-text index: %w", err)
		}
		report.Rebuilt = append(report.Rebuilt, "fts")
	}

	if report.Embeddings, err = s.countEmbeddings(ctx); err != nil {
		return nil, err
	}
	if report.Vectors, err = s.vectors.Count(ctx); err != nil {
		return nil, err
	}
	if report.Vectors != report.Embeddings {
		entries, err := s.allEmbeddings(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.vectors.Rebuild(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to rebuild vector index: %w", err)
		}
		report.Rebuilt = append(report.Rebuilt, s.vectors.Name())
	}

	if report.Unembedded, err = s.CountUnembedded(ctx); err != nil {
		return nil, err
	}

	var all []*model.Symbol
	for _, o := range s.observers {
		n, err := o.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s index: %w", o.Name(), err)
		}
		report.Observers[o.Name()] = n
		if n == report.Symbols {
			continue
		}
		if all == nil {
			if all, err = s.FindSymbols(ctx, SymbolQuery{}); err != nil {
				return nil, err
			}
		}
		if err := o.Rebuild(ctx, all); err != nil {
			return nil, fmt.Errorf("failed to rebuild %s index: %w", o.Name(), err)
		}
		report.Rebuilt = append(report.Rebuilt, o.Name())
	}
	return report, nil
}
