package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	replicationservice "fedsync/contexts/federation/replication-service"
	httptransport "fedsync/contexts/federation/replication-service/transport/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	_ "fedsync/internal/platform/httpserver/docs"
)

const moduleName = "internal/platform/httpserver"

// Options configures the HTTP surface. Registry receives the request
// histogram and backs /metrics; a nil Registry disables both.
type Options struct {
	Addr        string
	ServiceName string
	LocalDomain string
	Registry    *prometheus.Registry
	RateLimit   rate.Limit
	RateBurst   int
}

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	options    Options
	federation replicationservice.Module
	limiter    *peerLimiter
	duration   *prometheus.HistogramVec
	httpServer *http.Server
}

func New(
	federation replicationservice.Module,
	opts Options,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       opts.Addr,
		options:    opts,
		federation: federation,
		limiter:    newPeerLimiter(opts.RateLimit, opts.RateBurst, defaultLimiterCapacity),
	}
	if opts.Registry != nil {
		s.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fedsync_http_request_duration_seconds",
			Help:    "Latency of federation HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"code", "method"})
		opts.Registry.MustRegister(s.duration)
	}
	s.registerRoutes()
	return s
}

// Handler exposes the routed mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", moduleName,
		"layer", "platform",
		"addr", s.addr,
	)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.options.Registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.options.Registry, promhttp.HandlerOpts{}))
	}

	s.mux.Handle("POST /federation/v1/events", s.federationRoute(s.handleFederationReceiveEvent))
	s.mux.Handle("GET /federation/v1/servers/{server_id}/snapshot", s.federationRoute(s.handleFederationGetSnapshot))
	s.mux.Handle("POST /federation/v1/snapshots", s.federationRoute(s.handleFederationImportSnapshot))
}

// federationRoute applies the inbound rate limit and, when metrics are
// enabled, the latency histogram.
func (s *Server) federationRoute(fn http.HandlerFunc) http.Handler {
	var handler http.Handler = s.rateLimited(fn)
	if s.duration != nil {
		handler = promhttp.InstrumentHandlerDuration(s.duration, handler)
	}
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, httptransport.HealthResponse{
		Status:  "ok",
		Service: s.options.ServiceName,
		Domain:  s.options.LocalDomain,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
