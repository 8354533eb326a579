package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	participantsDiscovered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_pdp_participants_discovered",
		Help: "Remote participants currently within their SPDP lease.",
	}, []string{})

	endpointsMatched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_edp_endpoints_matched",
		Help: "Remote endpoints matched to the local endpoint on this topic whose matches changed most recently.",
	}, []string{"topic"})

	incompatibleQosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_edp_incompatible_qos_total",
		Help: "SEDP matching attempts that failed QoS compatibility.",
	}, []string{"topic"})
)
