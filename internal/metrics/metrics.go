package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_probes_total",
		Help: "Probes performed, by classified outcome.",
	}, []string{"status"})

	EntityUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uptime_entity_up",
		Help: "Believed state of each watched entity (1 = UP, 0 = DOWN).",
	}, []string{"entity"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_transitions_total",
		Help: "Detected UP/DOWN transitions.",
	}, []string{"entity", "to"})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_deliveries_total",
		Help: "Per-contact notification attempts, by channel and result.",
	}, []string{"channel", "result"})

	DispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uptime_dispatch_seconds",
		Help:    "Time for one notification pass to finish for all contacts.",
		Buckets: prometheus.DefBuckets,
	})

	ChannelRegistered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uptime_channel_registered",
		Help: "Whether a notification channel was constructed (1) or rejected (0).",
	}, []string{"channel"})

	TLSCertValid = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uptime_tls_cert_valid",
		Help: "Whether the entity's TLS certificate is valid (1 = valid, 0 = invalid).",
	}, []string{"entity"})

	TLSCertExpirySeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uptime_tls_cert_expiry_seconds",
		Help: "Seconds until the entity's TLS certificate expires.",
	}, []string{"entity"})

	TLSRedirect = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uptime_tls_redirect",
		Help: "Whether plain http on the entity's host redirects to https (1 = yes).",
	}, []string{"entity"})

	SweepOmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptime_status_sweep_omitted_total",
		Help: "Entities left out of on-demand status responses because they missed the ceiling.",
	})
)

// BoolGauge converts an up flag into a gauge value.
func BoolGauge(up bool) float64 {
	if up {
		return 1
	}
	return 0
}
