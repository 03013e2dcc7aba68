package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

var (
	cweCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "cwe_total",
			Help:      "Total number of database queries issued by the CWE store methods.",
		},
		[]string{"query"},
	)

	cweDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "cwe_duration_seconds",
			Help:      "The duration of all queries issued by the CWE store methods.",
		},
		[]string{"query"},
	)
)

// CreateOrUpdateCWE implements [datastore.CWEStore].
//
// Empty localized fields on the incoming record leave the stored
// localizations alone, so catalog refreshes don't erase translations.
func (s *Store) CreateOrUpdateCWE(ctx context.Context, rec *vulnmirror.CWE) error {
	const (
		insert = `
INSERT INTO cwes (id, name, status, description, name_zh, description_zh, remediation)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
		update = `
UPDATE cwes SET
	name = $2, status = $3, description = $4,
	name_zh = CASE WHEN $5 = '' THEN name_zh ELSE $5 END,
	description_zh = CASE WHEN $6 = '' THEN description_zh ELSE $6 END,
	remediation = CASE WHEN $7 = '' THEN remediation ELSE $7 END
WHERE id = $1;
`
	)
	start := time.Now()
	_, err := s.pool.Exec(ctx, insert,
		rec.ID, rec.Name, rec.Status, rec.Description, rec.NameZH, rec.DescriptionZH, rec.Remediation)
	cweCounter.WithLabelValues("create_or_update_insert").Add(1)
	cweDuration.WithLabelValues("create_or_update_insert").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		return nil
	case isUnique(err):
	default:
		return fmt.Errorf("CreateOrUpdateCWE failed: %w", err)
	}

	start = time.Now()
	_, err = s.pool.Exec(ctx, update,
		rec.ID, rec.Name, rec.Status, rec.Description, rec.NameZH, rec.DescriptionZH, rec.Remediation)
	cweCounter.WithLabelValues("create_or_update_update").Add(1)
	cweDuration.WithLabelValues("create_or_update_update").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("CreateOrUpdateCWE failed: %w", err)
	}
	return nil
}

// GetCWE implements [datastore.CWEStore].
func (s *Store) GetCWE(ctx context.Context, id int) (*vulnmirror.CWE, error) {
	const (
		name  = `get`
		query = `
SELECT id, name, status, description, name_zh, description_zh, remediation
FROM cwes WHERE id = $1;
`
	)
	start := time.Now()
	var rec vulnmirror.CWE
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&rec.ID, &rec.Name, &rec.Status, &rec.Description, &rec.NameZH, &rec.DescriptionZH, &rec.Remediation)
	cweCounter.WithLabelValues(name).Add(1)
	cweDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return nil, datastore.ErrNotFound
	default:
		return nil, fmt.Errorf("GetCWE failed: %w", err)
	}
	return &rec, nil
}

// QueryCWEs implements [datastore.CWEStore].
func (s *Store) QueryCWEs(ctx context.Context, q datastore.CWEQuery) ([]vulnmirror.CWE, error) {
	const metric = `query`
	psql := goqu.Dialect("postgres")
	ds := psql.From("cwes").
		Select("id", "name", "status", "description", "name_zh", "description_zh", "remediation")
	if q.Keyword != "" {
		kw := "%" + q.Keyword + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(kw),
			goqu.C("name_zh").Like(kw),
		))
	}
	page := q.Page.Clamp()
	ds = ds.Order(goqu.C("id").Asc()).Limit(uint(page.Size)).Offset(uint(page.Offset()))
	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("QueryCWEs failed: %w", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	cweCounter.WithLabelValues(metric).Add(1)
	cweDuration.WithLabelValues(metric).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("QueryCWEs failed: %w", err)
	}
	defer rows.Close()
	out := make([]vulnmirror.CWE, 0, page.Size)
	for rows.Next() {
		var rec vulnmirror.CWE
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Status, &rec.Description, &rec.NameZH, &rec.DescriptionZH, &rec.Remediation); err != nil {
			return nil, fmt.Errorf("QueryCWEs failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryCWEs failed: %w", err)
	}
	return out, nil
}
