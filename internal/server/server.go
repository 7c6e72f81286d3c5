package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/platform/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/platform/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/platform/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/platform/internal/platform"
)

// Server wraps the HTTP server and its handlers
type Server struct {
	router   *gin.Engine
	http     *http.Server
	handlers *apihttp.Handlers
	events   *ws.Handler
	logger   *zap.Logger
}

// New creates the introspection server of p
func New(p *platform.Platform) *Server {
	cfg := p.Config()
	logger := p.Logger().Named("server")

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Trace(logger.Named("http")))
	router.Use(monitoring.Middleware(p.Metrics()))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(p)
	events := ws.NewHandler(p.Loader(), p.Registry(), logger.Named("events"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Bundles
	router.GET("/bundles", handlers.ListBundles)
	router.GET("/bundles/:name", handlers.GetBundle)
	router.POST("/bundles/:name/start", handlers.StartBundle)
	router.POST("/bundles/:name/stop", handlers.StopBundle)

	// Services and extensions
	router.GET("/services", handlers.ListServices)
	router.GET("/extension-points", handlers.ListExtensionPoints)
	router.GET("/extension-points/:id/elements", handlers.GetElements)

	// Metrics
	router.GET("/metrics", gin.WrapH(p.Metrics().Handler()))
	router.GET("/metrics/json", handlers.Metrics)

	// WebSocket
	router.GET("/events", events.HandleConnection)

	return &Server{
		router:   router,
		handlers: handlers,
		events:   events,
		logger:   logger,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Introspection server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down introspection server")
	return s.http.Shutdown(ctx)
}
