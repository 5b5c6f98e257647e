package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"shophours/internal/config"
	"shophours/internal/db"
	"shophours/internal/hours"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// StatusService is the engine behind the API.
type StatusService interface {
	GetStatus(ctx context.Context, shopID string) (hours.ShopStatus, error)
	ForceRecompute(ctx context.Context, shopID string) (hours.ShopStatus, error)
	SetOverride(ctx context.Context, shopID string, isForcedOpen bool, reason, actor string) (hours.ShopStatus, error)
	ClearOverride(ctx context.Context, shopID, actor string) (hours.ShopStatus, error)
	GetWeeklyPreview(ctx context.Context, shopID string) ([]hours.DayPreview, error)
	GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error)
	PutSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule, actor string) (hours.WeeklySchedule, error)
	UpdateDay(ctx context.Context, shopID string, day hours.DaySchedule, actor string) (hours.WeeklySchedule, error)
}

// AuditLister exposes the per-shop log of override and schedule changes.
type AuditLister interface {
	ListAudit(ctx context.Context, shopID string, limit int) ([]db.AuditEntry, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPServer serves the shop status JSON API.
type HTTPServer struct {
	service StatusService
	audit   AuditLister
	checks  []ReadinessCheck
	logger  *zerolog.Logger

	keys      map[string]string // API key -> label
	rateLimit rate.Limit
	rateBurst int
	limiters  sync.Map // caller -> *rate.Limiter

	metrics bool
	server  *http.Server
}

// NewHTTPServer builds the API server. With no API keys configured every
// caller is accepted and rate limited by remote address.
func NewHTTPServer(cfg config.ServerConfig, apiCfg config.APIConfig, service StatusService, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	keys := make(map[string]string, len(apiCfg.Keys))
	for _, k := range apiCfg.Keys {
		label := k.Label
		if label == "" {
			label = "api"
		}
		keys[k.Key] = label
	}

	s := &HTTPServer{
		service:   service,
		logger:    logger,
		keys:      keys,
		rateLimit: rate.Limit(apiCfg.RateLimit),
		rateBurst: apiCfg.RateBurst,
	}
	s.server = &http.Server{
		Addr:         cfg.Address,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// WithAudit enables the history endpoint and the History sheet of the
// spreadsheet export.
func (s *HTTPServer) WithAudit(a AuditLister) *HTTPServer {
	s.audit = a
	return s
}

// WithMetrics mounts the Prometheus handler at /metrics.
func (s *HTTPServer) WithMetrics() *HTTPServer {
	s.metrics = true
	return s
}

// AddReadinessCheck registers a dependency probed by /readyz.
func (s *HTTPServer) AddReadinessCheck(name string, check func(ctx context.Context) error) {
	s.checks = append(s.checks, ReadinessCheck{Name: name, Check: check})
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/shops/{shop_id}/status", s.handleGetStatus)
	api.HandleFunc("POST /api/shops/{shop_id}/status/refresh", s.handleRefreshStatus)
	api.HandleFunc("GET /api/shops/{shop_id}/schedule", s.handleGetSchedule)
	api.HandleFunc("PUT /api/shops/{shop_id}/schedule", s.handlePutSchedule)
	api.HandleFunc("PATCH /api/shops/{shop_id}/schedule/{day}", s.handleUpdateDay)
	api.HandleFunc("GET /api/shops/{shop_id}/schedule/preview", s.handlePreview)
	api.HandleFunc("GET /api/shops/{shop_id}/schedule/export.xlsx", s.handleExport)
	api.HandleFunc("POST /api/shops/{shop_id}/override", s.handleSetOverride)
	api.HandleFunc("POST /api/shops/{shop_id}/override/clear", s.handleClearOverride)
	api.HandleFunc("GET /api/shops/{shop_id}/history", s.handleHistory)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authenticate(api))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return s.logRequests(mux)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	s.server.Handler = s.Handler()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctxShutdown)
}

type ctxKey int

const labelKey ctxKey = iota

// authenticate checks X-Api-Key and applies the per-caller rate limit.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := "api"
		limiterKey := ""
		if len(s.keys) > 0 {
			label, ok := s.keys[r.Header.Get("X-Api-Key")]
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
			caller = label
			limiterKey = "key:" + r.Header.Get("X-Api-Key")
		} else {
			limiterKey = "ip:" + remoteHost(r)
		}

		if !s.limiter(limiterKey).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), labelKey, caller)))
	})
}

func (s *HTTPServer) limiter(key string) *rate.Limiter {
	if l, ok := s.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := s.limiters.LoadOrStore(key, rate.NewLimiter(s.rateLimit, s.rateBurst))
	return l.(*rate.Limiter)
}

// actor names who issued a command: X-Actor, else the API key label.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	if label, ok := r.Context().Value(labelKey).(string); ok && label != "" {
		return label
	}
	return "api"
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Check(ctxPing); err != nil {
			http.Error(w, c.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
