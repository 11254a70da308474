// Package metrics exposes prometheus collectors describing refresh passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

const namespace = "git_line_diffs"

// Pass outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
	OutcomeCoalesced   = "coalesced"
)

// Collector records refresh activity. A nil *Collector is valid and records nothing.
type Collector struct {
	passes   *prometheus.CounterVec
	duration prometheus.Histogram
	skipped  *prometheus.CounterVec
	totals   *prometheus.GaugeVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_passes_total",
			Help:      "Refresh requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of completed refresh passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_total",
			Help:      "Diffs and repositories skipped because of retrieval failures.",
		}, []string{"kind"}),
		totals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_total",
			Help:      "Totals of the last completed snapshot.",
		}, []string{"measure"}),
	}
	reg.MustRegister(c.passes, c.duration, c.skipped, c.totals)
	return c
}

// ObservePass counts one refresh request with its outcome.
func (c *Collector) ObservePass(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		c.duration.Observe(elapsed.Seconds())
	}
}

// ObserveSnapshot publishes the totals and skip counters of a completed snapshot.
func (c *Collector) ObserveSnapshot(s domain.AggregateSnapshot) {
	if c == nil {
		return
	}
	c.skipped.WithLabelValues("diff").Add(float64(s.SkippedDiffs))
	c.skipped.WithLabelValues("repository").Add(float64(s.SkippedRepositories))
	c.totals.WithLabelValues("files_changed").Set(float64(s.TotalFilesChanged))
	c.totals.WithLabelValues("added").Set(float64(s.TotalAdded))
	c.totals.WithLabelValues("removed").Set(float64(s.TotalRemoved))
}
