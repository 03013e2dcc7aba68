// Package libmirror is the embedding facade: it wires the store, the feed
// adapters, and the pipeline manager behind one constructor and re-exposes
// the query surface.
package libmirror

import (
	"context"

	"github.com/quay/zlog"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
	"github.com/stackrook/vulnmirror/datastore/postgres"
	"github.com/stackrook/vulnmirror/updates"
)

// Mirror is an instance of the vulnerability mirror.
type Mirror struct {
	store   datastore.Store
	pg      *postgres.Store
	manager *updates.Manager
}

// New reports a ready Mirror.
//
// Unless disabled, the background sync starts immediately; cancel the
// provided context to stop it.
func New(ctx context.Context, opts *Options) (*Mirror, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "libmirror/New")
	if err := opts.parse(ctx); err != nil {
		return nil, err
	}

	if opts.Migrations {
		if err := postgres.Migrate(ctx, opts.ConnString); err != nil {
			return nil, err
		}
	}
	pool, err := postgres.Connect(ctx, opts.ConnString, "vulnmirror")
	if err != nil {
		return nil, err
	}
	pg := postgres.New(pool)

	us, err := opts.updaters()
	if err != nil {
		pg.Close()
		return nil, err
	}
	m := &Mirror{store: pg, pg: pg}
	m.manager, err = updates.NewManager(ctx, pg, us,
		updates.WithInterval(opts.UpdateInterval))
	if err != nil {
		pg.Close()
		return nil, err
	}

	if !opts.DisableBackgroundSync {
		go func() {
			if err := m.manager.Start(ctx); err != nil && ctx.Err() == nil {
				zlog.Error(ctx).Err(err).Msg("background sync stopped")
			}
		}()
	}
	zlog.Info(ctx).Msg("libmirror initialized")
	return m, nil
}

// Sync runs one synchronous pass over every configured adapter.
func (m *Mirror) Sync(ctx context.Context) error {
	return m.manager.Run(ctx)
}

// Store exposes the underlying store for ingestion helpers.
func (m *Mirror) Store() datastore.Store { return m.store }

// Close releases the database pool.
func (m *Mirror) Close() { m.pg.Close() }

// GetCVE reports the record with the exact ID.
func (m *Mirror) GetCVE(ctx context.Context, id string) (*vulnmirror.CVE, error) {
	return m.store.GetCVE(ctx, id)
}

// QueryCVEs reports a page of records matching the filter.
func (m *Mirror) QueryCVEs(ctx context.Context, q datastore.CVEQuery) ([]vulnmirror.CVE, error) {
	return m.store.QueryCVEs(ctx, q)
}

// GetCWE reports one weakness catalog entry.
func (m *Mirror) GetCWE(ctx context.Context, id int) (*vulnmirror.CWE, error) {
	return m.store.GetCWE(ctx, id)
}

// QueryCWEs reports a page of catalog entries.
func (m *Mirror) QueryCWEs(ctx context.Context, q datastore.CWEQuery) ([]vulnmirror.CWE, error) {
	return m.store.QueryCWEs(ctx, q)
}

// GetVendor reports one vendor by name.
func (m *Mirror) GetVendor(ctx context.Context, name string) (*vulnmirror.Vendor, error) {
	return m.store.GetVendor(ctx, name)
}

// QueryProducts reports a page of products.
func (m *Mirror) QueryProducts(ctx context.Context, q datastore.ProductQuery) ([]vulnmirror.Product, error) {
	return m.store.QueryProducts(ctx, q)
}

// QueryKBs reports a page of knowledge-base entries.
func (m *Mirror) QueryKBs(ctx context.Context, q datastore.KBQuery) ([]vulnmirror.KB, error) {
	return m.store.QueryKBs(ctx, q)
}
