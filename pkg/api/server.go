package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"unitlens/pkg/api/middleware"
	"unitlens/pkg/auth"
	"unitlens/pkg/hostinfo"
	"unitlens/pkg/systemd"
)

// UnitInspector runs the service-manager queries behind the HTTP routes.
type UnitInspector interface {
	UnitStatus(ctx context.Context, unit string) (string, error)
	SystemSummary(ctx context.Context) (string, error)
	UnitLogs(ctx context.Context, unit, since string) (string, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        *zap.Logger

	inspector UnitInspector
	limits    systemd.Limits
	limiter   *middleware.RateLimiter
	checks    map[string]HealthCheck
	hostInfo  func(ctx context.Context) (*hostinfo.Info, error)

	stopLimiter context.CancelFunc
}

// Config holds API server configuration.
type Config struct {
	Port        string
	ServiceName string
	Inspector   UnitInspector
	Logger      *zap.Logger
	RateLimit   middleware.RateLimiterConfig

	// Auth is enforced only when AuthEnabled is set.
	AuthEnabled bool
	JWTService  *auth.JWTService
	APIKeyStore auth.APIKeyStore

	HealthChecks map[string]HealthCheck
	// HostInfo defaults to hostinfo.Collect.
	HostInfo func(ctx context.Context) (*hostinfo.Info, error)
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "unitlens"
	}
	if cfg.HostInfo == nil {
		cfg.HostInfo = hostinfo.Collect
	}

	limiterCtx, stop := context.WithCancel(context.Background())
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Run(limiterCtx)

	router := gin.New()

	// Middleware stack (order matters)
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(limiter.Middleware())
	if cfg.AuthEnabled {
		router.Use(middleware.AuthMiddleware(middleware.AuthConfig{
			JWTService:  cfg.JWTService,
			APIKeyStore: cfg.APIKeyStore,
			SkipPaths:   []string{"/health", "/metrics"},
		}))
	}

	s := &Server{
		router:      router,
		log:         log,
		inspector:   cfg.Inspector,
		limits:      systemd.DefaultLimits(),
		limiter:     limiter,
		checks:      cfg.HealthChecks,
		hostInfo:    cfg.HostInfo,
		stopLimiter: stop,
	}

	s.registerRoutes(cfg.AuthEnabled)

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: journal reads are unbounded unless
		// COMMAND_TIMEOUT is set, and a cut-off body is worse than a slow one.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("starting API server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	s.stopLimiter()
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes(enforceRoles bool) {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	viewer := middleware.RequireRole(auth.RoleViewer, enforceRoles)
	operator := middleware.RequireRole(auth.RoleOperator, enforceRoles)

	s.router.GET("/summary", viewer, s.systemSummary)
	s.router.GET("/status/:unit", viewer, s.unitStatus)
	s.router.GET("/logs/:unit", operator, s.unitLogs)
}
