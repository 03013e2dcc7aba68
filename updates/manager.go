// Package updates drives the feed adapters: it schedules passes, fans them
// out with bounded parallelism, and routes what they fetch into the store.
package updates

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
	"github.com/stackrook/vulnmirror/updater/driver"
)

// DefaultInterval is the tick between background passes.
const DefaultInterval = 6 * time.Hour

// DefaultBatchSize is the default max in-flight adapters.
var DefaultBatchSize = runtime.NumCPU()

var (
	runCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnmirror",
			Subsystem: "updates",
			Name:      "runs_total",
			Help:      "Total number of adapter passes, by result.",
		},
		[]string{"updater", "result"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnmirror",
			Subsystem: "updates",
			Name:      "run_duration_seconds",
			Help:      "The duration of adapter passes.",
		},
		[]string{"updater"},
	)
)

var tracer = otel.Tracer("vulnmirror/updates")

// Manager oversees the configured adapters.
//
// It may be used one-shot via Run, as a background job via Start, or both.
type Manager struct {
	store     datastore.Store
	updaters  []driver.Updater
	batchSize int
	interval  time.Duration

	// Watermarks are kept per adapter and only advance on success, so a
	// failed pass is retried over the same window on the next tick.
	mu  sync.Mutex
	fps map[string]driver.Fingerprint
}

// ManagerOption adjusts a Manager under construction.
type ManagerOption func(*Manager)

// WithInterval sets the background tick.
func WithInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.interval = d }
}

// WithBatchSize bounds in-flight adapters.
func WithBatchSize(n int) ManagerOption {
	return func(m *Manager) { m.batchSize = n }
}

// NewManager reports a manager ready to have its Start or Run methods called.
func NewManager(ctx context.Context, store datastore.Store, updaters []driver.Updater, opts ...ManagerOption) (*Manager, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/NewManager")
	m := &Manager{
		store:     store,
		updaters:  updaters,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		fps:       make(map[string]driver.Fingerprint),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.batchSize < 1 {
		return nil, errors.New("updates: batch size must be positive")
	}
	seen := make(map[string]struct{}, len(updaters))
	for _, u := range updaters {
		if _, ok := seen[u.Name()]; ok {
			return nil, fmt.Errorf("updates: duplicate updater %q", u.Name())
		}
		seen[u.Name()] = struct{}{}
	}
	zlog.Info(ctx).Int("updaters", len(updaters)).Msg("manager configured")
	return m, nil
}

// Start runs passes at the configured interval until the context is
// canceled. An initial pass runs immediately.
//
// Start is designed to be run as a goroutine.
func (m *Manager) Start(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/Manager.Start")
	zlog.Info(ctx).Msg("starting initial pass")
	if err := m.Run(ctx); err != nil {
		zlog.Error(ctx).Err(err).Msg("errors in initial pass")
	}

	zlog.Info(ctx).Str("interval", m.interval.String()).Msg("starting background passes")
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := m.Run(ctx); err != nil {
				zlog.Error(ctx).Err(err).Msg("errors in pass")
			}
		}
	}
}

// Run drives every adapter once, at most batchSize at a time.
//
// A failing adapter aborts its own pass only; the others in the same tick
// proceed. The reported error aggregates the per-adapter failures.
func (m *Manager) Run(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/Manager.Run")
	sem := semaphore.NewWeighted(int64(m.batchSize))
	errChan := make(chan error, len(m.updaters))
	for i := range m.updaters {
		if err := sem.Acquire(ctx, 1); err != nil {
			zlog.Error(ctx).Err(err).Msg("sem acquire failed, ending run")
			break
		}
		go func(u driver.Updater) {
			defer sem.Release(1)
			if err := ctx.Err(); err != nil {
				return
			}
			if err := m.driveUpdater(ctx, u); err != nil {
				errChan <- fmt.Errorf("%v: %w", u.Name(), err)
			}
		}(m.updaters[i])
	}

	// Wait for all in-flight passes; they are guaranteed to release.
	sem.Acquire(context.Background(), int64(m.batchSize))
	close(errChan)
	if len(errChan) != 0 {
		var b strings.Builder
		b.WriteString("updating errors:")
		for err := range errChan {
			fmt.Fprintf(&b, "\n%v", err)
		}
		return errors.New(b.String())
	}
	return nil
}

func (m *Manager) driveUpdater(ctx context.Context, u driver.Updater) (err error) {
	name := u.Name()
	ctx = zlog.ContextWithValues(ctx,
		"component", "updates/Manager.driveUpdater",
		"updater", name,
	)
	ctx, span := tracer.Start(ctx, "driveUpdater",
		trace.WithAttributes(attribute.String("updater", name)))
	defer span.End()

	var unchanged bool
	start := time.Now()
	defer func() {
		result := "success"
		switch {
		case unchanged:
			result = "unchanged"
		case err != nil:
			result = "error"
			span.RecordError(err)
		}
		runCounter.WithLabelValues(name, result).Add(1)
		runDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	zlog.Info(ctx).Msg("starting pass")
	defer zlog.Info(ctx).Msg("finished pass")

	m.mu.Lock()
	prev := m.fps[name]
	m.mu.Unlock()

	var next driver.Fingerprint
	switch u := u.(type) {
	case driver.CVEUpdater:
		var recs []vulnmirror.CVE
		recs, next, err = u.FetchCVEs(ctx, prev)
		if err != nil {
			break
		}
		err = IngestCVEs(ctx, m.store, recs)
	case driver.TranslationUpdater:
		err = m.driveTranslation(ctx, u)
		next = prev
	case driver.KBUpdater:
		var ups []vulnmirror.KB
		var dels []driver.KBDelete
		ups, dels, next, err = u.FetchKB(ctx, prev)
		if err != nil {
			break
		}
		err = IngestKB(ctx, m.store, ups, dels)
	default:
		err = fmt.Errorf("unrecognized updater kind %T", u)
	}
	switch {
	case errors.Is(err, driver.Unchanged):
		zlog.Debug(ctx).Msg("no new content")
		unchanged = true
		err = nil
		return nil
	case err != nil:
		return err
	}

	m.mu.Lock()
	m.fps[name] = next
	m.mu.Unlock()
	return nil
}

// DriveTranslation asks the store for untranslated records and applies what
// the adapter reports.
func (m *Manager) driveTranslation(ctx context.Context, u driver.TranslationUpdater) error {
	want, err := m.untranslated(ctx)
	if err != nil {
		return err
	}
	vals, err := u.FetchTranslations(ctx, want)
	if err != nil {
		return err
	}
	var applied int
	for id, v := range vals {
		err := m.store.UpdateTranslated(ctx, id, u.Lang(), v)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, datastore.ErrNotFound):
			// Not mirrored yet; a later sync will pick it up.
		default:
			zlog.Warn(ctx).Err(err).Str("cve", id).Msg("failed to apply translation")
		}
	}
	zlog.Info(ctx).Int("applied", applied).Msg("applied translations")
	return nil
}

// Untranslated reports a bounded batch of CVE IDs still missing a
// translation, newest first.
func (m *Manager) untranslated(ctx context.Context) ([]string, error) {
	const maxPages = 5
	translated := false
	var out []string
	for page := 1; page <= maxPages; page++ {
		recs, err := m.store.QueryCVEs(ctx, datastore.CVEQuery{
			Translated: &translated,
			Page:       datastore.Page{Number: page, Size: datastore.MaxPageSize},
		})
		if err != nil {
			return nil, err
		}
		for i := range recs {
			out = append(out, recs[i].ID)
		}
		if len(recs) < datastore.MaxPageSize {
			break
		}
	}
	return out, nil
}
