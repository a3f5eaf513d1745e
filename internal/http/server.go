package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"totalx/internal/log"
	"totalx/internal/middleware/ratelimit"
	"totalx/internal/middleware/security"
	"totalx/internal/middleware/trace"
	"totalx/internal/services"
)

// Options tunes NewServer. Zero values pick the defaults.
type Options struct {
	// RateLimitPerMinute budgets each acting identity from one client address.
	RateLimitPerMinute int
	// ClientRateLimitPerMinute budgets a client address across all identities.
	// Zero means ten times RateLimitPerMinute.
	ClientRateLimitPerMinute int
	// Ready backs /readyz; nil reports ready unconditionally.
	Ready func(ctx context.Context) error
	// Logger is stored in every request context.
	Logger *log.Logger
}

type Server struct {
	http.Server
	svc         *services.LedgerService
	ready       func(ctx context.Context) error
	rateLimiter *ratelimit.Limiter
	clientLimit *ratelimit.Limiter
	clientIP    *security.Resolver
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		svc:      svc,
		ready:    opts.Ready,
		clientIP: security.NewResolver(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}
	if opts.ClientRateLimitPerMinute <= 0 {
		opts.ClientRateLimitPerMinute = 10 * opts.RateLimitPerMinute
	}
	s.clientLimit = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.ClientRateLimitPerMinute,
	})
	s.tracer = trace.NewMiddleware(s.clientIP.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/add", s.command(log.OpAdd, "", s.handleAdd))
	api.HandleFunc("POST /v1/subtract", s.command(log.OpSubtract, "", s.handleSubtract))
	api.HandleFunc("GET /v1/total", s.command(log.OpTotal, "", s.handleTotal))
	api.HandleFunc("GET /v1/report", s.command(log.OpReport, "", s.handleReport))
	api.HandleFunc("GET /v1/export", s.handleExport)
	api.HandleFunc("POST /v1/undo", s.command(log.OpUndo, "", s.handleUndo))
	api.HandleFunc("POST /v1/reset", s.command(log.OpReset, "", s.handleReset))
	api.HandleFunc("POST /v1/setadmin", s.command(log.OpSetAdmin, "target", s.handleSetAdmin))
	api.HandleFunc("GET /v1/adminlist", s.command(log.OpAdminList, "", s.handleAdminList))
	api.HandleFunc("GET /v1/help", s.handleHelp)
	limited := s.rateLimiter.Middleware(s.rateLimitKey, s.onRateLimit)(api)
	mux.Handle("/v1/", s.clientLimit.Middleware(s.clientIP.ClientIP, s.onRateLimit)(limited))

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// rateLimitKey budgets requests per acting identity and client address.
// X-Actor is not authenticated, so the address-wide clientLimit bounds what
// rotating identities can spend.
func (s *Server) rateLimitKey(r *http.Request) string {
	ip := s.clientIP.ClientIP(r)
	if actor, err := ActorFromRequest(r); err == nil {
		return ip + "|" + actor.String()
	}
	return ip
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP.ClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Troppe richieste, riprova tra un minuto.").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.clientLimit.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters for the startup and shutdown logs.
// Rejected counts refusals from both the per-actor and per-address limits.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	limits := s.rateLimiter.GetMetrics()
	limits.Rejected += s.clientLimit.GetMetrics().Rejected
	return s.tracer.GetMetrics(), limits
}
