package liveprice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/liveprice/internal/model"
)

// ErrNoSources is returned by an empty MultiSource.
var ErrNoSources = errors.New("no snapshot sources")

// SnapshotSource returns a bulk set of current quotes used to seed the table.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]model.PriceQuote, error)
}

// SourceFunc adapts a function to SnapshotSource.
type SourceFunc func(ctx context.Context) ([]model.PriceQuote, error)

// Snapshot implements SnapshotSource.
func (f SourceFunc) Snapshot(ctx context.Context) ([]model.PriceQuote, error) {
	return f(ctx)
}

// NamedSource labels a source for logging.
type NamedSource struct {
	Name   string
	Source SnapshotSource
}

// MultiSource queries every source concurrently and merges the results.
// Earlier sources take precedence for a symbol present in several. It fails
// only when every source fails.
type MultiSource struct {
	sources []NamedSource
	logger  *slog.Logger
}

// NewMultiSource creates a MultiSource in precedence order.
func NewMultiSource(logger *slog.Logger, sources ...NamedSource) *MultiSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSource{sources: sources, logger: logger}
}

// Snapshot implements SnapshotSource.
func (m *MultiSource) Snapshot(ctx context.Context) ([]model.PriceQuote, error) {
	if len(m.sources) == 0 {
		return nil, ErrNoSources
	}

	results := make([][]model.PriceQuote, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			quotes, err := src.Source.Snapshot(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				m.logger.Debug("snapshot source failed", "source", src.Name, "error", err)
				return nil
			}
			results[i] = quotes
			return nil
		})
	}
	g.Wait()

	seen := make(map[string]struct{})
	var out []model.PriceQuote
	ok := false
	for i, quotes := range results {
		if errs[i] != nil {
			continue
		}
		ok = true
		for _, q := range quotes {
			sym := model.NormalizeSymbol(q.Symbol)
			if sym == "" {
				continue
			}
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			q.Symbol = sym
			out = append(out, q)
		}
	}

	if !ok {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
