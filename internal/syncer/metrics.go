package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medword_sync_poll_runs_total",
		Help: "Reconciliation fetches issued against the backend, by collection and result.",
	}, []string{"collection", "result"})

	pollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medword_sync_poll_duration_seconds",
		Help:    "Duration of reconciliation fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection"})

	coalescedRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medword_sync_coalesced_refreshes_total",
		Help: "Forced refreshes whose fetch was shared with another caller.",
	}, []string{"collection"})
)
