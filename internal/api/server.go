package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Store       store.Store      // Required
	Responder   *relay.Responder // Required
	ModelName   string           // Reported by /healthz
	CORSOrigins []string         // Allowed origins for CORS (empty = allow all)
	TrustProxy  bool             // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateLimit   float64          // Rate limiter refill rate per IP (0 = default 10/sec)
	RateBurst   int              // Rate limiter burst size per IP (0 = default 30)
	EnableDebug bool             // Registers the thread dump endpoint
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &threadHandler{store: cfg.Store, logger: logger}
	rh := &respondHandler{
		store:     cfg.Store,
		responder: cfg.Responder,
		logger:    logger,
	}

	mux := http.NewServeMux()

	// Thread CRUD
	mux.HandleFunc("POST /api/v1/threads", th.createThread)
	mux.HandleFunc("GET /api/v1/threads", th.listThreads)
	mux.HandleFunc("GET /api/v1/threads/{id}", th.getThread)
	mux.HandleFunc("GET /api/v1/threads/{id}/items", th.listItems)
	mux.HandleFunc("DELETE /api/v1/threads/{id}", th.deleteThread)

	// Streaming completion
	mux.HandleFunc("POST /api/v1/threads/{id}/respond", rh.respond)

	// Development-only raw dump of every thread and its items
	if cfg.EnableDebug {
		dh := &debugHandler{store: cfg.Store, logger: logger}
		mux.HandleFunc("GET /api/v1/debug/threads", dh.dumpThreads)
	}

	// Rate limiter: per-IP token bucket
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(limit, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to keep health probes outside the middleware stack
	topMux := http.NewServeMux()
	topMux.Handle("GET /healthz", health(cfg.ModelName))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
