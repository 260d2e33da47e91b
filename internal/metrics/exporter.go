package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Path is where the exporter serves metrics.
	Path = "/metrics"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// SecurityHeaders sets conservative response headers for a plain-text endpoint.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// Handler serves the metrics of g on GET and HEAD only.
func Handler(g prometheus.Gatherer) http.Handler {
	metrics := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	mux := http.NewServeMux()
	mux.Handle(Path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		metrics.ServeHTTP(w, r)
	}))
	return SecurityHeaders(mux)
}

// Exporter is a running metrics HTTP server.
type Exporter struct {
	srv    *http.Server
	ln     net.Listener
	done   chan error
	logger logging.Logger
}

// Serve listens on addr and serves g until Shutdown is called.
func Serve(addr string, g prometheus.Gatherer, logger logging.Logger) (*Exporter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	e := &Exporter{
		srv: &http.Server{
			Handler:           Handler(g),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ln:     ln,
		done:   make(chan error, 1),
		logger: logger,
	}
	go func() {
		err := e.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		e.done <- err
	}()
	logger.Info("metrics exporter listening", logging.String("addr", e.Addr()))
	return e, nil
}

// Addr returns the address the exporter is bound to.
func (e *Exporter) Addr() string { return e.ln.Addr().String() }

// Shutdown stops the exporter, waiting at most shutdownTimeout for requests to drain.
func (e *Exporter) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown metrics exporter")
	}
	return <-e.done
}
