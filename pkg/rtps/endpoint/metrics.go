package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	heartbeatsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_writer_heartbeats_sent_total",
		Help: "HEARTBEAT submessages sent by a StatefulWriter.",
	}, []string{"topic"})

	acknacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_writer_acknacks_received_total",
		Help: "ACKNACK submessages processed by a StatefulWriter.",
	}, []string{"topic"})

	matchedReaders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_writer_matched_readers",
		Help: "Readers currently matched to a StatefulWriter.",
	}, []string{"topic"})

	matchedWriters = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_reader_matched_writers",
		Help: "Writers currently matched to a StatefulReader.",
	}, []string{"topic"})

	deadlineMissed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_reader_deadline_missed_total",
		Help: "REQUESTED_DEADLINE_MISSED events raised by a StatefulReader.",
	}, []string{"topic"})

	livelinessLost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_reader_liveliness_lost_total",
		Help: "LIVELINESS_LOST events raised for a writer proxy by a StatefulReader.",
	}, []string{"topic"})
)
