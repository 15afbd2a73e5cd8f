// Package metrics exposes Prometheus collectors for the sharing protocol and
// a dedicated metrics listener, kept off the main API address so operational
// scraping never competes with protocol traffic.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SharesVerified counts share submissions that passed the commitment
	// check.
	SharesVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vss_shares_verified_total",
		Help: "Number of submitted shares that passed commitment verification",
	})

	// SharesRejected counts share submissions that failed the commitment
	// check. Rejections are expected protocol outcomes, not server errors.
	SharesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vss_shares_rejected_total",
		Help: "Number of submitted shares that failed commitment verification",
	})

	// Reconstructions counts sessions that reached the reconstructed state.
	Reconstructions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vss_reconstructions_total",
		Help: "Number of secrets reconstructed from collected shares",
	})

	// SessionsByState tracks the number of sharing sessions per lifecycle
	// state.
	SessionsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vss_sessions",
		Help: "Number of sharing sessions per state",
	}, []string{"state"})

	// ParameterGenerations observes wall-clock seconds spent searching for
	// group parameters.
	ParameterGenerations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vss_parameter_generation_seconds",
		Help:    "Duration of group parameter searches",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	serviceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vss_service_up",
		Help: "Set to 1 while the named service exposes metrics",
	}, []string{"service"})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service on addr.
func New(service, addr string) (*MetricsServer, error) {
	serviceUp.WithLabelValues(service).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	))

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving scrapes until Shutdown or a listener error.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
