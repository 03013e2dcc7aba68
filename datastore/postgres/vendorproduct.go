package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

var (
	vendorProductCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "vendorproduct_total",
			Help:      "Total number of database queries issued by the vendor and product store methods.",
		},
		[]string{"query"},
	)

	vendorProductDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "vendorproduct_duration_seconds",
			Help:      "The duration of all queries issued by the vendor and product store methods.",
		},
		[]string{"query"},
	)
)

// VendorQueryOrCreate implements [datastore.VendorStore].
//
// The insert races benignly: a concurrent insert of the same name surfaces
// as a unique violation and the following select wins either way.
func (s *Store) VendorQueryOrCreate(ctx context.Context, name string) (*vulnmirror.Vendor, error) {
	const (
		metric = `vendor_query_or_create`
		insert = `INSERT INTO vendors (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING;`
	)
	start := time.Now()
	defer func() {
		vendorProductCounter.WithLabelValues(metric).Add(1)
		vendorProductDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	}()
	v, err := s.getVendor(ctx, name)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, datastore.ErrNotFound):
	default:
		return nil, fmt.Errorf("VendorQueryOrCreate failed: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insert, uuid.New(), name); err != nil && !isUnique(err) {
		return nil, fmt.Errorf("VendorQueryOrCreate failed: %w", err)
	}
	v, err = s.getVendor(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("VendorQueryOrCreate failed: %w", err)
	}
	return v, nil
}

// GetVendor implements [datastore.VendorStore].
func (s *Store) GetVendor(ctx context.Context, name string) (*vulnmirror.Vendor, error) {
	const metric = `vendor_get`
	start := time.Now()
	v, err := s.getVendor(ctx, name)
	vendorProductCounter.WithLabelValues(metric).Add(1)
	vendorProductDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, datastore.ErrNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("GetVendor failed: %w", err)
	}
	return v, nil
}

func (s *Store) getVendor(ctx context.Context, name string) (*vulnmirror.Vendor, error) {
	const query = `SELECT id, name, official, description, meta FROM vendors WHERE name = $1;`
	var v vulnmirror.Vendor
	var meta []byte
	err := s.pool.QueryRow(ctx, query, name).Scan(&v.ID, &v.Name, &v.Official, &v.Description, &meta)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return nil, datastore.ErrNotFound
	default:
		return nil, err
	}
	if len(meta) != 0 {
		if err := json.Unmarshal(meta, &v.Meta); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// ProductQueryOrCreate implements [datastore.ProductStore].
//
// Identity is (vendor_id, name); part is an attribute recorded from the
// first CPE name that referenced the product. A missing vendor is a
// programmer error in the ingest sequencing and is surfaced as a
// foreign-key failure, not papered over.
func (s *Store) ProductQueryOrCreate(ctx context.Context, vendorID uuid.UUID, name, part string) (*vulnmirror.Product, error) {
	const (
		metric = `product_query_or_create`
		insert = `INSERT INTO products (id, vendor_id, name, part) VALUES ($1, $2, $3, $4) ON CONFLICT (vendor_id, name) DO NOTHING;`
	)
	start := time.Now()
	defer func() {
		vendorProductCounter.WithLabelValues(metric).Add(1)
		vendorProductDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	}()
	p, err := s.getProduct(ctx, vendorID, name)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, datastore.ErrNotFound):
	default:
		return nil, fmt.Errorf("ProductQueryOrCreate failed: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insert, uuid.New(), vendorID, name, part); err != nil && !isUnique(err) {
		return nil, fmt.Errorf("ProductQueryOrCreate failed: %w", err)
	}
	p, err = s.getProduct(ctx, vendorID, name)
	if err != nil {
		return nil, fmt.Errorf("ProductQueryOrCreate failed: %w", err)
	}
	return p, nil
}

func (s *Store) getProduct(ctx context.Context, vendorID uuid.UUID, name string) (*vulnmirror.Product, error) {
	const query = `
SELECT id, vendor_id, name, part, official, description, meta
FROM products WHERE vendor_id = $1 AND name = $2;
`
	var p vulnmirror.Product
	var meta []byte
	err := s.pool.QueryRow(ctx, query, vendorID, name).
		Scan(&p.ID, &p.VendorID, &p.Name, &p.Part, &p.Official, &p.Description, &meta)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return nil, datastore.ErrNotFound
	default:
		return nil, err
	}
	if len(meta) != 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// QueryProducts implements [datastore.ProductStore].
func (s *Store) QueryProducts(ctx context.Context, q datastore.ProductQuery) ([]vulnmirror.Product, error) {
	const metric = `product_query`
	psql := goqu.Dialect("postgres")
	ds := psql.From("products").
		Select("id", "vendor_id", "name", "part", "official", "description", "meta")
	if q.VendorID != uuid.Nil {
		ds = ds.Where(goqu.Ex{"vendor_id": q.VendorID.String()})
	}
	if q.Name != "" {
		ds = ds.Where(goqu.Ex{"name": q.Name})
	}
	page := q.Page.Clamp()
	ds = ds.Order(goqu.C("name").Asc()).Limit(uint(page.Size)).Offset(uint(page.Offset()))
	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("QueryProducts failed: %w", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	vendorProductCounter.WithLabelValues(metric).Add(1)
	vendorProductDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("QueryProducts failed: %w", err)
	}
	defer rows.Close()
	out := make([]vulnmirror.Product, 0, page.Size)
	for rows.Next() {
		var p vulnmirror.Product
		var meta []byte
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &p.Part, &p.Official, &p.Description, &meta); err != nil {
			return nil, fmt.Errorf("QueryProducts failed: %w", err)
		}
		if len(meta) != 0 {
			if err := json.Unmarshal(meta, &p.Meta); err != nil {
				return nil, fmt.Errorf("QueryProducts failed: %w", err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryProducts failed: %w", err)
	}
	return out, nil
}
