// Package http implements the SoulSpace REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/soulspace/soulspace-hub/internal/application/command"
	"github.com/soulspace/soulspace-hub/internal/application/query"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// AllowedOrigins for CORS. Empty disables CORS handling.
	AllowedOrigins []string

	// RateLimitPerMinute per client IP. 0 disables the limiter.
	RateLimitPerMinute int

	// JWTSecret verifies user bearer tokens (HS256).
	JWTSecret string
	// JWTIssuer, when set, must match the iss claim.
	JWTIssuer string

	// ServiceKeyHeader carries the service key for internal endpoints.
	ServiceKeyHeader string
	// ServiceKeyHash is the bcrypt hash of the service key.
	ServiceKeyHash string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       64 << 10,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		ServiceKeyHeader:   "X-Service-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter decides whether a client may make another request.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// HTTPObserver records served requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Dependencies contains everything the handlers call into.
type Dependencies struct {
	// Commands
	GrantXP           *command.GrantXPHandler
	CreateGoal        *command.CreateGoalHandler
	GoalProgress      *command.GoalProgressHandler
	SubmitAssessment  *command.SubmitAssessmentHandler
	CompleteChallenge *command.CompleteChallengeHandler
	UpsertCompanion   *command.UpsertCompanionHandler

	// Queries
	GetProgress     *query.GetProgressHandler
	GetXPHistory    *query.GetXPHistoryHandler
	GetGoalBoard    *query.GetGoalBoardHandler
	CategorizeText  *query.CategorizeTextHandler
	FindCompanions  *query.FindCompanionsHandler
	ListChallenges  *query.ListChallengesHandler
	ListAssessments *query.ListAssessmentsHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
	RateLimiter   RateLimiter
	Observer      HTTPObserver

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	bearer  *handlers.BearerAuth
	service *handlers.ServiceKeyAuth

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:  config,
		deps:    deps,
		router:  http.NewServeMux(),
		logger:  deps.Logger,
		bearer:  handlers.NewBearerAuth(config.JWTSecret, config.JWTIssuer),
		service: handlers.NewServiceKeyAuth(config.ServiceKeyHeader, config.ServiceKeyHash),
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.Handler(),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.buildMiddlewareChain(s.router)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	if s.deps.MetricsHandler != nil {
		s.router.Handle("GET /metrics", s.deps.MetricsHandler)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Public
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/levels/{totalXp}", s.handleDescribeLevel)
	s.router.HandleFunc("POST /api/v1/goals/categorize", s.handleCategorize)
	s.router.Handle("GET /api/v1/challenges", s.optionalUser(s.handleListChallenges))

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated user
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("GET /api/v1/me/progress", s.user(s.handleGetProgress))
	s.router.Handle("GET /api/v1/me/xp/history", s.user(s.handleGetXPHistory))
	s.router.Handle("GET /api/v1/me/goals/board", s.user(s.handleGetGoalBoard))
	s.router.Handle("POST /api/v1/me/goals", s.user(s.handleCreateGoal))
	s.router.Handle("PATCH /api/v1/me/goals/{id}/progress", s.user(s.handleUpdateGoalProgress))
	s.router.Handle("POST /api/v1/me/goals/{id}/complete", s.user(s.handleCompleteGoal))
	s.router.Handle("POST /api/v1/me/assessments", s.user(s.handleSubmitAssessment))
	s.router.Handle("GET /api/v1/me/assessments", s.user(s.handleListAssessments))
	s.router.Handle("POST /api/v1/me/challenges/{id}/complete", s.user(s.handleCompleteChallenge))
	s.router.Handle("PUT /api/v1/me/companion", s.user(s.handleUpsertCompanion))
	s.router.Handle("GET /api/v1/me/companions", s.user(s.handleFindCompanions))

	// ─────────────────────────────────────────────────────────────────────────
	// Internal (service key)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("POST /api/v1/users/{userId}/xp", s.service.Middleware(http.HandlerFunc(s.handleGrantXP)))
}

func (s *Server) user(h http.HandlerFunc) http.Handler {
	return handlers.ChainHandler(h, s.bearer.Middleware, handlers.NoCacheMiddleware)
}

// optionalUser authenticates when a token is present and lets anonymous
// requests through.
func (s *Server) optionalUser(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			h(w, r)
			return
		}
		s.bearer.Middleware(h).ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router; the first middleware listed is the outermost.
func (s *Server) buildMiddlewareChain(h http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{
		s.requestIDMiddleware,
		s.recoveryMiddleware,
		s.loggingMiddleware,
	}
	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", s.config.ServiceKeyHeader},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	chain = append(chain, handlers.SecurityHeadersMiddleware)
	if s.deps.RateLimiter != nil && s.config.RateLimitPerMinute > 0 {
		chain = append(chain, s.rateLimitMiddleware)
	}
	if s.config.MaxBodyBytes > 0 {
		chain = append(chain, handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
	}
	if s.deps.Observer != nil {
		chain = append(chain, s.metricsMiddleware)
	}
	return handlers.ChainHandler(h, chain...)
}

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := handlers.WithRequestID(r.Context(), requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
			logger.String("request_id", handlers.RequestID(r.Context())),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", handlers.RequestID(r.Context())),
				)
				handlers.WriteError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies the shared per-IP budget. Limiter failures
// let the request through.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := s.deps.RateLimiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			s.logger.Warn("rate limiter unavailable", logger.Err(err))
			allowed = true
		}
		if !allowed {
			w.Header().Set("Retry-After", "60")
			handlers.WriteError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware labels requests by route pattern to keep cardinality bounded.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		_, route := s.router.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		next.ServeHTTP(rw, r)
		s.deps.Observer.ObserveHTTP(r.Method, route, rw.statusCode, time.Since(start))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP extracts the client IP from the request.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
