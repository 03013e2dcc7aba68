package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

var (
	kbCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "kb_total",
			Help:      "Total number of database queries issued by the knowledge-base store methods.",
		},
		[]string{"query"},
	)

	kbDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "kb_duration_seconds",
			Help:      "The duration of all queries issued by the knowledge-base store methods.",
		},
		[]string{"query"},
	)
)

// CreateOrUpdateKB implements [datastore.KBStore].
func (s *Store) CreateOrUpdateKB(ctx context.Context, rec *vulnmirror.KB) error {
	const (
		insert = `
INSERT INTO knowledge_base (id, name, source, type, verified, path, description, meta)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
		update = `
UPDATE knowledge_base SET
	type = $3, verified = $4, path = $5, description = $6, meta = $7
WHERE name = $1 AND source = $2;
`
	)
	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode kb %q: %w", rec.Name, err)
	}
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, insert,
		id, rec.Name, rec.Source, rec.Type, rec.Verified, rec.Path, rec.Description, meta)
	kbCounter.WithLabelValues("create_or_update_insert").Add(1)
	kbDuration.WithLabelValues("create_or_update_insert").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		rec.ID = id
		return nil
	case isUnique(err):
	default:
		return fmt.Errorf("CreateOrUpdateKB failed: %w", err)
	}

	start = time.Now()
	_, err = s.pool.Exec(ctx, update,
		rec.Name, rec.Source, rec.Type, rec.Verified, rec.Path, rec.Description, meta)
	kbCounter.WithLabelValues("create_or_update_update").Add(1)
	kbDuration.WithLabelValues("create_or_update_update").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("CreateOrUpdateKB failed: %w", err)
	}
	return nil
}

// DeleteKB implements [datastore.KBStore].
//
// Edges referencing the entry are removed first; deleting an absent entry
// is a no-op.
func (s *Store) DeleteKB(ctx context.Context, name, source string) error {
	const (
		metric   = `delete`
		delEdges = `
DELETE FROM cve_knowledge_base
WHERE kb_id IN (SELECT id FROM knowledge_base WHERE name = $1 AND source = $2);
`
		del = `DELETE FROM knowledge_base WHERE name = $1 AND source = $2;`
	)
	start := time.Now()
	defer func() {
		kbCounter.WithLabelValues(metric).Add(1)
		kbDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	}()
	if _, err := s.pool.Exec(ctx, delEdges, name, source); err != nil {
		return fmt.Errorf("DeleteKB failed: %w", err)
	}
	if _, err := s.pool.Exec(ctx, del, name, source); err != nil {
		return fmt.Errorf("DeleteKB failed: %w", err)
	}
	return nil
}

// QueryKBs implements [datastore.KBStore].
func (s *Store) QueryKBs(ctx context.Context, q datastore.KBQuery) ([]vulnmirror.KB, error) {
	const metric = `query`
	psql := goqu.Dialect("postgres")
	ds := psql.From("knowledge_base").
		Select("id", "name", "source", "type", "verified", "path", "description", "meta")
	if q.CVE != "" {
		sub := psql.From("cve_knowledge_base").Select("kb_id").Where(goqu.Ex{"cve_id": q.CVE})
		ds = ds.Where(goqu.C("id").In(sub))
	}
	if q.Name != "" {
		ds = ds.Where(goqu.Ex{"name": q.Name})
	}
	if q.Source != "" {
		ds = ds.Where(goqu.Ex{"source": q.Source})
	}
	if q.Verified != nil {
		ds = ds.Where(goqu.Ex{"verified": *q.Verified})
	}
	page := q.Page.Clamp()
	ds = ds.Order(goqu.C("name").Desc()).Limit(uint(page.Size)).Offset(uint(page.Offset()))
	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("QueryKBs failed: %w", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	kbCounter.WithLabelValues(metric).Add(1)
	kbDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("QueryKBs failed: %w", err)
	}
	defer rows.Close()
	out := make([]vulnmirror.KB, 0, page.Size)
	for rows.Next() {
		var kb vulnmirror.KB
		var meta []byte
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Source, &kb.Type, &kb.Verified, &kb.Path, &kb.Description, &meta); err != nil {
			return nil, fmt.Errorf("QueryKBs failed: %w", err)
		}
		if len(meta) != 0 {
			if err := json.Unmarshal(meta, &kb.Meta); err != nil {
				return nil, fmt.Errorf("QueryKBs failed: %w", err)
			}
		}
		out = append(out, kb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryKBs failed: %w", err)
	}
	return out, nil
}
