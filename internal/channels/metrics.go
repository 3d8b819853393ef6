package channels

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds relay instruments. A nil *Metrics records nothing.
type Metrics struct {
	webhooks     *prometheus.CounterVec
	events       *prometheus.CounterVec
	replies      *prometheus.CounterVec
	replyLatency prometheus.Histogram
}

// NewMetrics registers relay instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linerelay_webhook_requests_total",
				Help: "Total number of webhook requests by result",
			},
			[]string{"result"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linerelay_events_total",
				Help: "Total number of webhook events by classification",
			},
			[]string{"class"},
		),
		replies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linerelay_replies_total",
				Help: "Total number of reply attempts by result",
			},
			[]string{"result"},
		),
		replyLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linerelay_reply_duration_seconds",
				Help:    "LINE reply API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observeWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(result).Inc()
}

func (m *Metrics) observeEvent(class string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(class).Inc()
}

func (m *Metrics) observeReply(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.replyLatency.Observe(elapsed.Seconds())
	}
}
