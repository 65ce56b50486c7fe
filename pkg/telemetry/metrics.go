package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the auto-scheduler reports against its
// configured registry.
type Metrics struct {
	RoomsCompressed prometheus.Counter
	RowsSaved       prometheus.Counter
	ChunksSkipped   prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers the three scheduler counters against a fresh
// registry: rooms_compressed_total, rows_saved_total, chunks_skipped_total.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		RoomsCompressed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rooms_compressed_total",
			Help: "Number of rooms that reached NoProgress after at least one committed chunk.",
		}),
		RowsSaved: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rows_saved_total",
			Help: "Total delta rows removed by committed chunks.",
		}),
		ChunksSkipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunks_skipped_total",
			Help: "Number of chunks rejected by the growth check.",
		}),
		registry: reg,
	}
}

// NewNoopMetrics returns a Metrics whose counters are never scraped. Used
// when --metrics-addr is not set, so callers don't need a nil check.
func NewNoopMetrics() *Metrics {
	return NewMetrics()
}

// Serve starts an HTTP server exposing the registry at /metrics and blocks
// until ctx is cancelled or the server fails.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
