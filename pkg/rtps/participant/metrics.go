package participant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_participant_messages_dropped_total",
		Help: "RTPS messages dropped by the incoming-message demux, by reason.",
	}, []string{"reason"})

	submessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_participant_submessages_dispatched_total",
		Help: "Submessages dispatched to a local endpoint, by submessage kind.",
	}, []string{"kind"})

	localEndpoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_participant_local_endpoints",
		Help: "Local endpoints currently registered with this participant, by direction.",
	}, []string{"direction"})
)
