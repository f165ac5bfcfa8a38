// internal/service/listening/metrics.go

package listening

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the stream worker
type Metrics struct {
	PostsReceived      prometheus.Counter
	PostsFiltered      *prometheus.CounterVec
	PostsProcessed     *prometheus.CounterVec
	PostsFailed        *prometheus.CounterVec
	Reactions          *prometheus.CounterVec
	StreamRestarts     prometheus.Counter
	StreamConnected    prometheus.Gauge
	AnnotationDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetpulse_posts_received_total",
			Help: "Matching posts delivered by the stream",
		}),
		PostsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetpulse_posts_filtered_total",
			Help: "Posts dropped by the eligibility filter",
		}, []string{"reason"}),
		PostsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetpulse_posts_processed_total",
			Help: "Posts enriched and persisted",
		}, []string{"positive"}),
		PostsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetpulse_posts_failed_total",
			Help: "Posts whose processing failed, by stage",
		}, []string{"stage"}),
		Reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetpulse_reactions_total",
			Help: "Favorite and reshare actions issued",
		}, []string{"action", "result"}),
		StreamRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetpulse_stream_restarts_total",
			Help: "Subscription restarts after the stream stopped",
		}),
		StreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tweetpulse_stream_connected",
			Help: "1 while the stream subscription is connected",
		}),
		AnnotationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tweetpulse_annotation_duration_seconds",
			Help:    "Latency of text analysis calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PostsReceived,
			m.PostsFiltered,
			m.PostsProcessed,
			m.PostsFailed,
			m.Reactions,
			m.StreamRestarts,
			m.StreamConnected,
			m.AnnotationDuration,
		)
	}

	return m
}

func (m *Metrics) observeProcessed(positive bool) {
	m.PostsProcessed.WithLabelValues(strconv.FormatBool(positive)).Inc()
}
