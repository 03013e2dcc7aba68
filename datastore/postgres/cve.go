package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

var (
	cveCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "cve_total",
			Help:      "Total number of database queries issued by the CVE store methods.",
		},
		[]string{"query"},
	)

	cveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "datastore",
			Name:      "cve_duration_seconds",
			Help:      "The duration of all queries issued by the CVE store methods.",
		},
		[]string{"query"},
	)
)

// CveJSON is the jsonb-encoded portion of a row.
type cveJSON struct {
	descriptions, metrics, weaknesses, configurations, refs []byte
}

func encodeCVE(rec *vulnmirror.CVE) (j cveJSON, err error) {
	enc := func(dst *[]byte, v any) {
		if err != nil {
			return
		}
		*dst, err = json.Marshal(v)
	}
	enc(&j.descriptions, rec.Descriptions)
	enc(&j.metrics, &rec.Metrics)
	enc(&j.weaknesses, rec.Weaknesses)
	enc(&j.configurations, rec.Configurations)
	enc(&j.refs, rec.References)
	if err != nil {
		return j, fmt.Errorf("failed to encode record %q: %w", rec.ID, err)
	}
	return j, nil
}

const insertCVE = `
INSERT INTO cves
	(id, year, assigner, published, modified, descriptions, severity, metrics, weaknesses, configurations, refs, translated)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
`

// CreateCVE implements [datastore.CVEStore].
func (s *Store) CreateCVE(ctx context.Context, rec *vulnmirror.CVE) error {
	const name = `create`
	j, err := encodeCVE(rec)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, insertCVE+`ON CONFLICT (id) DO NOTHING;`,
		rec.ID, rec.Year, rec.Assigner, rec.Published, rec.Modified,
		j.descriptions, rec.Severity, j.metrics, j.weaknesses, j.configurations, j.refs)
	cveCounter.WithLabelValues(name).Add(1)
	cveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("CreateCVE failed: %w", err)
	}
	return nil
}

// CreateOrUpdateCVE implements [datastore.CVEStore].
//
// A unique violation on insert selects the update branch, which overwrites
// the upstream-owned columns and resets the translated flag.
func (s *Store) CreateOrUpdateCVE(ctx context.Context, rec *vulnmirror.CVE) error {
	const update = `
UPDATE cves SET
	assigner = $2, published = $3, modified = $4, descriptions = $5,
	severity = $6, metrics = $7, weaknesses = $8, configurations = $9,
	refs = $10, translated = false
WHERE id = $1;
`
	j, err := encodeCVE(rec)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, insertCVE+`;`,
		rec.ID, rec.Year, rec.Assigner, rec.Published, rec.Modified,
		j.descriptions, rec.Severity, j.metrics, j.weaknesses, j.configurations, j.refs)
	cveCounter.WithLabelValues("create_or_update_insert").Add(1)
	cveDuration.WithLabelValues("create_or_update_insert").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		return nil
	case isUnique(err):
	default:
		return fmt.Errorf("CreateOrUpdateCVE failed: %w", err)
	}

	start = time.Now()
	_, err = s.pool.Exec(ctx, update,
		rec.ID, rec.Assigner, rec.Published, rec.Modified,
		j.descriptions, rec.Severity, j.metrics, j.weaknesses, j.configurations, j.refs)
	cveCounter.WithLabelValues("create_or_update_update").Add(1)
	cveDuration.WithLabelValues("create_or_update_update").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("CreateOrUpdateCVE failed: %w", err)
	}
	return nil
}

// UpdateTranslated implements [datastore.CVEStore].
//
// The description list is merged keyed on lang, so repeated calls converge
// on the same state.
func (s *Store) UpdateTranslated(ctx context.Context, id, lang, value string) error {
	const (
		name   = `update_translated`
		get    = `SELECT descriptions FROM cves WHERE id = $1 FOR UPDATE;`
		update = `UPDATE cves SET descriptions = $2, translated = true WHERE id = $1;`
	)
	start := time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var raw []byte
		if err := tx.QueryRow(ctx, get, id).Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return datastore.ErrNotFound
			}
			return err
		}
		var descs []vulnmirror.Description
		if err := json.Unmarshal(raw, &descs); err != nil {
			return err
		}
		found := false
		for i := range descs {
			if descs[i].Lang == lang {
				descs[i].Value = value
				found = true
				break
			}
		}
		if !found {
			descs = append(descs, vulnmirror.Description{Lang: lang, Value: value})
		}
		enc, err := json.Marshal(descs)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, update, id, enc)
		return err
	})
	cveCounter.WithLabelValues(name).Add(1)
	cveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("UpdateTranslated failed: %w", err)
	}
	return nil
}

var cveColumns = []any{
	"id", "year", "assigner", "published", "modified", "descriptions",
	"severity", "metrics", "weaknesses", "configurations", "refs", "translated",
}

func scanCVE(row pgx.Row) (*vulnmirror.CVE, error) {
	var rec vulnmirror.CVE
	var j cveJSON
	err := row.Scan(&rec.ID, &rec.Year, &rec.Assigner, &rec.Published, &rec.Modified,
		&j.descriptions, &rec.Severity, &j.metrics, &j.weaknesses, &j.configurations, &j.refs,
		&rec.Translated)
	if err != nil {
		return nil, err
	}
	dec := func(src []byte, v any) {
		if err != nil || len(src) == 0 {
			return
		}
		err = json.Unmarshal(src, v)
	}
	dec(j.descriptions, &rec.Descriptions)
	dec(j.metrics, &rec.Metrics)
	dec(j.weaknesses, &rec.Weaknesses)
	dec(j.configurations, &rec.Configurations)
	dec(j.refs, &rec.References)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetCVE implements [datastore.CVEStore].
func (s *Store) GetCVE(ctx context.Context, id string) (*vulnmirror.CVE, error) {
	const (
		name  = `get`
		query = `
SELECT id, year, assigner, published, modified, descriptions, severity, metrics, weaknesses, configurations, refs, translated
FROM cves WHERE id = $1;
`
	)
	start := time.Now()
	rec, err := scanCVE(s.pool.QueryRow(ctx, query, id))
	cveCounter.WithLabelValues(name).Add(1)
	cveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		return nil, datastore.ErrNotFound
	default:
		return nil, fmt.Errorf("GetCVE failed: %w", err)
	}
	return rec, nil
}

// BuildCVEQuery renders the filter into SQL.
func buildCVEQuery(q *datastore.CVEQuery) (string, error) {
	psql := goqu.Dialect("postgres")
	ds := psql.From("cves").Select(cveColumns...)
	if q.ID != "" {
		ds = ds.Where(goqu.Ex{"id": q.ID})
	}
	if q.Year != 0 {
		ds = ds.Where(goqu.Ex{"year": q.Year})
	}
	if q.Translated != nil {
		ds = ds.Where(goqu.Ex{"translated": *q.Translated})
	}
	if q.Severity != nil {
		ds = ds.Where(goqu.Ex{"severity": q.Severity.String()})
	}
	if q.Vendor != "" || q.Product != "" {
		sub := psql.From("cve_product").
			Select("cve_id").
			Join(goqu.T("products"), goqu.On(goqu.Ex{"products.id": goqu.I("cve_product.product_id")})).
			Join(goqu.T("vendors"), goqu.On(goqu.Ex{"vendors.id": goqu.I("products.vendor_id")}))
		if q.Vendor != "" {
			sub = sub.Where(goqu.Ex{"vendors.name": q.Vendor})
		}
		if q.Product != "" {
			sub = sub.Where(goqu.Ex{"products.name": q.Product})
		}
		ds = ds.Where(goqu.C("id").In(sub))
	}
	order := goqu.C("id").Desc()
	if q.Ascending {
		order = goqu.C("id").Asc()
	}
	page := q.Page.Clamp()
	ds = ds.Order(order).Limit(uint(page.Size)).Offset(uint(page.Offset()))
	sql, _, err := ds.ToSQL()
	return sql, err
}

// QueryCVEs implements [datastore.CVEStore].
func (s *Store) QueryCVEs(ctx context.Context, q datastore.CVEQuery) ([]vulnmirror.CVE, error) {
	const name = `query`
	query, err := buildCVEQuery(&q)
	if err != nil {
		return nil, fmt.Errorf("QueryCVEs failed: %w", err)
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	cveCounter.WithLabelValues(name).Add(1)
	cveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("QueryCVEs failed: %w", err)
	}
	defer rows.Close()
	out := make([]vulnmirror.CVE, 0, q.Page.Clamp().Size)
	for rows.Next() {
		rec, err := scanCVE(rows)
		if err != nil {
			return nil, fmt.Errorf("QueryCVEs failed: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryCVEs failed: %w", err)
	}
	return out, nil
}
