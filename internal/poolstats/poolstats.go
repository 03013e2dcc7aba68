// Package poolstats exports pgxpool statistics as prometheus metrics.
package poolstats

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ stat                 = (*pgxpool.Stat)(nil)
)

// Stat is the subset of pgxpool.Stat the collector reads.
type stat interface {
	AcquireCount() int64
	AcquireDuration() time.Duration
	AcquiredConns() int32
	CanceledAcquireCount() int64
	ConstructingConns() int32
	EmptyAcquireCount() int64
	IdleConns() int32
	MaxConns() int32
	TotalConns() int32
}

// Stater is a provider of the Stat function. Implemented by pgxpool.Pool.
type Stater interface {
	Stat() *pgxpool.Stat
}

// Collector is a prometheus.Collector reporting the statistics of one pool,
// labeled by application name.
type Collector struct {
	stat  func() stat
	name  string
	descs [numStats]*prometheus.Desc
}

// The collected statistics, in the order of the desc table below.
const (
	acquireCount = iota
	acquireDuration
	acquiredConns
	canceledAcquireCount
	constructingConns
	emptyAcquireCount
	idleConns
	maxConns
	totalConns

	numStats
)

var descs = [numStats]struct {
	name    string
	help    string
	kind    prometheus.ValueType
	collect func(stat) float64
}{
	acquireCount: {
		`pgxpool_acquire_count`,
		`Cumulative count of successful acquires from the pool.`,
		prometheus.CounterValue,
		func(s stat) float64 { return float64(s.AcquireCount()) },
	},
	acquireDuration: {
		`pgxpool_acquire_duration_seconds_total`,
		`Total duration of all successful acquires from the pool.`,
		prometheus.CounterValue,
		func(s stat) float64 { return s.AcquireDuration().Seconds() },
	},
	acquiredConns: {
		`pgxpool_acquired_conns`,
		`Number of currently acquired connections in the pool.`,
		prometheus.GaugeValue,
		func(s stat) float64 { return float64(s.AcquiredConns()) },
	},
	canceledAcquireCount: {
		`pgxpool_canceled_acquire_count`,
		`Cumulative count of acquires from the pool that were canceled by a context.`,
		prometheus.CounterValue,
		func(s stat) float64 { return float64(s.CanceledAcquireCount()) },
	},
	constructingConns: {
		`pgxpool_constructing_conns`,
		`Number of conns with construction in progress in the pool.`,
		prometheus.GaugeValue,
		func(s stat) float64 { return float64(s.ConstructingConns()) },
	},
	emptyAcquireCount: {
		`pgxpool_empty_acquire`,
		`Cumulative count of successful acquires that waited on an empty pool.`,
		prometheus.CounterValue,
		func(s stat) float64 { return float64(s.EmptyAcquireCount()) },
	},
	idleConns: {
		`pgxpool_idle_conns`,
		`Number of currently idle conns in the pool.`,
		prometheus.GaugeValue,
		func(s stat) float64 { return float64(s.IdleConns()) },
	},
	maxConns: {
		`pgxpool_max_conns`,
		`Maximum size of the pool.`,
		prometheus.GaugeValue,
		func(s stat) float64 { return float64(s.MaxConns()) },
	},
	totalConns: {
		`pgxpool_total_conns`,
		`Total number of resources currently in the pool.`,
		prometheus.GaugeValue,
		func(s stat) float64 { return float64(s.TotalConns()) },
	},
}

// NewCollector creates a Collector reading from the provided pool.
func NewCollector(p Stater, appname string) *Collector {
	return newCollector(func() stat { return p.Stat() }, appname)
}

func newCollector(fn func() stat, appname string) *Collector {
	c := Collector{stat: fn, name: appname}
	for i, d := range descs {
		c.descs[i] = prometheus.NewDesc(d.name, d.help, []string{"application_name"}, nil)
	}
	return &c
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	for i, d := range descs {
		ch <- prometheus.MustNewConstMetric(c.descs[i], d.kind, d.collect(s), c.name)
	}
}
