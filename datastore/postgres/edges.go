package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	edgeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "edge_total",
			Help:      "Total number of database queries issued by the edge store methods.",
		},
		[]string{"query"},
	)

	edgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "edge_duration_seconds",
			Help:      "The duration of all queries issued by the edge store methods.",
		},
		[]string{"query"},
	)
)

// CVEProducts implements [datastore.EdgeStore].
func (s *Store) CVEProducts(ctx context.Context, cveID string) ([]uuid.UUID, error) {
	const (
		name  = `cve_products`
		query = `SELECT product_id FROM cve_product WHERE cve_id = $1;`
	)
	start := time.Now()
	ids, err := s.selectIDs(ctx, query, cveID)
	edgeCounter.WithLabelValues(name).Add(1)
	edgeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("CVEProducts failed: %w", err)
	}
	return ids, nil
}

// CVEKBs implements [datastore.EdgeStore].
func (s *Store) CVEKBs(ctx context.Context, cveID string) ([]uuid.UUID, error) {
	const (
		name  = `cve_kbs`
		query = `SELECT kb_id FROM cve_knowledge_base WHERE cve_id = $1;`
	)
	start := time.Now()
	ids, err := s.selectIDs(ctx, query, cveID)
	edgeCounter.WithLabelValues(name).Add(1)
	edgeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("CVEKBs failed: %w", err)
	}
	return ids, nil
}

func (s *Store) selectIDs(ctx context.Context, query, cveID string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, query, cveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceCVEProducts implements [datastore.EdgeStore].
//
// The linked set is reconciled by set difference: edges absent from the new
// set are deleted, new ones inserted. Surviving edges are untouched, so a
// replace with an identical set is a no-op.
func (s *Store) ReplaceCVEProducts(ctx context.Context, cveID string, products []uuid.UUID) error {
	const (
		name   = `replace_cve_products`
		del    = `DELETE FROM cve_product WHERE cve_id = $1 AND product_id = $2;`
		insert = `INSERT INTO cve_product (cve_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;`
	)
	old, err := s.CVEProducts(ctx, cveID)
	if err != nil {
		return err
	}
	next := make(map[uuid.UUID]struct{}, len(products))
	for _, id := range products {
		next[id] = struct{}{}
	}
	prev := make(map[uuid.UUID]struct{}, len(old))
	for _, id := range old {
		prev[id] = struct{}{}
	}

	var batch pgx.Batch
	for _, id := range old {
		if _, ok := next[id]; !ok {
			batch.Queue(del, cveID, id)
		}
	}
	for _, id := range products {
		if _, ok := prev[id]; !ok {
			batch.Queue(insert, cveID, id)
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	start := time.Now()
	err = s.pool.SendBatch(ctx, &batch).Close()
	edgeCounter.WithLabelValues(name).Add(1)
	edgeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("ReplaceCVEProducts failed: %w", err)
	}
	return nil
}

// LinkKB implements [datastore.EdgeStore].
func (s *Store) LinkKB(ctx context.Context, cveID string, kbID uuid.UUID) error {
	const (
		name   = `link_kb`
		insert = `INSERT INTO cve_knowledge_base (cve_id, kb_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;`
	)
	start := time.Now()
	_, err := s.pool.Exec(ctx, insert, cveID, kbID)
	edgeCounter.WithLabelValues(name).Add(1)
	edgeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("LinkKB failed: %w", err)
	}
	return nil
}
