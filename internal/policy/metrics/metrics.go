package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module: creation and
// submission counts, callback fan-in by status, optimistic-save conflicts and
// the carrier round-trip latency.
type Metrics struct {
	PolicyCreated     prometheus.Counter
	PolicySubmitted   prometheus.Counter
	CallbackApplied   *prometheus.CounterVec
	SaveConflicts     prometheus.Counter
	CarrierDuration   prometheus.Histogram
	EventsPublished   *prometheus.CounterVec
	PDFDownloads      prometheus.Counter
}

// New creates a Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		PolicyCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polis_policies_created_total",
			Help: "Total number of policies created from leads",
		}),
		PolicySubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polis_policies_submitted_total",
			Help: "Total number of policies submitted to a carrier",
		}),
		CallbackApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "polis_callbacks_applied_total",
			Help: "Carrier status callbacks applied, by resulting status",
		}, []string{"status"}),
		SaveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polis_policy_save_conflicts_total",
			Help: "Optimistic concurrency conflicts detected on policy save",
		}),
		CarrierDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "polis_carrier_request_duration_seconds",
			Help:    "Duration of carrier submission requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "polis_domain_events_published_total",
			Help: "Domain events published to the broker, by event name",
		}, []string{"event"}),
		PDFDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polis_policy_pdf_downloads_total",
			Help: "Policy documents fetched from a carrier and stored",
		}),
	}
}

// ObserveCarrierRequest records the duration of one carrier round trip.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveCarrierRequest(start time.Time) {
	m.CarrierDuration.Observe(time.Since(start).Seconds())
}
