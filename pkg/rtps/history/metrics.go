package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtps_history_samples_stored",
			Help: "Number of CacheChanges currently held by a history.",
		},
		[]string{"side", "topic"},
	)

	instancesStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtps_history_instances_stored",
			Help: "Number of distinct keyed instances currently held by a history.",
		},
		[]string{"side", "topic"},
	)

	samplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtps_history_samples_rejected_total",
			Help: "CacheChanges rejected by a resource limit, by reason.",
		},
		[]string{"side", "topic", "reason"},
	)

	samplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtps_history_samples_dropped_total",
			Help: "CacheChanges evicted by KEEP_LAST depth or disposed-instance staleness.",
		},
		[]string{"side", "topic", "reason"},
	)
)
