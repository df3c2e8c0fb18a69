package pricing

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/quoteflow/quoteflow/internal/observability"
)

// Reloader re-reads the catalog file into a store. Concurrent reloads share
// one read.
type Reloader struct {
	store   *CatalogStore
	path    string
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewReloader builds a Reloader for the catalog at path.
func NewReloader(store *CatalogStore, path string, metrics *observability.Metrics, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{store: store, path: path, metrics: metrics, logger: logger}
}

// Reload loads the catalog and installs it. A bad document leaves the active
// catalog in place.
func (r *Reloader) Reload(ctx context.Context) (*Catalog, error) {
	v, err, _ := r.group.Do("catalog", func() (any, error) {
		cat, err := LoadCatalog(r.path)
		if err != nil {
			r.logger.ErrorContext(ctx, "reload catalog", slog.String("path", r.path), slog.Any("error", err))
			return nil, err
		}
		r.store.Replace(cat)
		r.metrics.SetCatalogVersion(cat.Version)
		r.logger.InfoContext(ctx, "catalog loaded", slog.String("version", cat.Version))
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}
