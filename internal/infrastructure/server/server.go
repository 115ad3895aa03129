package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/monview/internal/api/http"
	"github.com/GriffinCanCode/monview/internal/api/middleware"
	"github.com/GriffinCanCode/monview/internal/api/ws"
	"github.com/GriffinCanCode/monview/internal/client"
	"github.com/GriffinCanCode/monview/internal/domain/acquire"
	"github.com/GriffinCanCode/monview/internal/domain/registry"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/domain/session"
	"github.com/GriffinCanCode/monview/internal/infrastructure/config"
	"github.com/GriffinCanCode/monview/internal/infrastructure/logging"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	client   *client.Client
	registry *registry.Manager
	sessions *session.Manager
	hub      *ws.Handler
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	unsubscribe []func()

	mu           sync.Mutex
	stopRegistry func() // Protected by mu
	closed       bool   // Protected by mu
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	logger.Info("Initializing monitor viewer",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("backend", cfg.Backend.URL),
		zap.String("mode", cfg.Acquire.Mode),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Backend client
	clientCfg := client.DefaultConfig(cfg.Backend.URL)
	clientCfg.Timeout = cfg.Backend.Timeout
	clientCfg.InsecureTLS = cfg.Backend.InsecureTLS
	clientCfg.RPS = cfg.Backend.RPS
	clientCfg.MaxBodyBytes = cfg.Acquire.MaxFrameBytes
	clientCfg.MaxScreens = cfg.Registry.MaxScreens
	backend := client.New(clientCfg, logger.Component("client")).WithMetrics(metrics)

	// Monitor registry
	registryMgr := registry.NewManager(backend, logger.Component("registry")).WithMetrics(metrics)

	// Acquisition strategy
	strategy := newStrategy(cfg, backend, logger, metrics)

	// Renderer and session
	renderer := render.New(render.DefaultConfig(), logger.Component("render")).WithMetrics(metrics)
	sessions := session.NewManager(registryMgr, strategy, renderer, logger.Component("session")).WithMetrics(metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(registryMgr, sessions, logger.Component("api")).
		WithMetrics(metrics).
		WithTileClamp(cfg.View.TileMinPercent, cfg.View.TileMaxPercent).
		WithBackendState(func() string { return backend.BreakerState().String() })
	hub := ws.NewHandler(sessions, handlers.CurrentView, ws.DefaultConfig(), logger.Component("ws")).WithMetrics(metrics)

	// Register routes
	handlers.Register(router)
	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Every state change re-derives the pushed view.
	unsubscribe := []func(){
		sessions.Subscribe(hub.Notify),
		registryMgr.Subscribe(func(types.MonitorList) { hub.Notify() }),
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:      router,
		http:        httpServer,
		client:      backend,
		registry:    registryMgr,
		sessions:    sessions,
		hub:         hub,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
		unsubscribe: unsubscribe,
	}, nil
}

func newStrategy(cfg *config.Config, backend *client.Client, logger *logging.Logger, metrics *monitoring.Metrics) acquire.Strategy {
	if cfg.Acquire.Mode == config.ModePoll {
		return acquire.NewPoll(acquire.PollConfig{
			Interval:     cfg.Acquire.PollInterval,
			PrimaryOnly:  cfg.Acquire.PrimaryOnly,
			LegacySingle: cfg.Acquire.LegacySingle,
		}, backend, logger.Component("poll")).WithMetrics(metrics)
	}

	dialer := acquire.NewWebsocketDialer(cfg.Backend.InsecureTLS, cfg.Backend.Timeout, cfg.Acquire.MaxFrameBytes)
	return acquire.NewStream(acquire.StreamConfig{
		BaseURL:        cfg.StreamBase(),
		PrimaryOnly:    cfg.Acquire.PrimaryOnly,
		ReconnectDelay: cfg.Acquire.ReconnectDelay,
	}, dialer, logger.Component("stream")).WithMetrics(metrics)
}

// Router exposes the configured router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the registry refresh loop and serves HTTP until Close. It
// returns nil at once if the server is already closed.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.stopRegistry == nil {
		s.stopRegistry = s.registry.Start(ctx, s.config.Registry.RefreshInterval)
	}
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopRegistry := s.stopRegistry
	s.mu.Unlock()

	s.logger.Info("Shutting down server...")

	var shutdownErr error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Shutdown also makes a later ListenAndServe return ErrServerClosed.
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		shutdownErr = fmt.Errorf("failed to shut down http server: %w", err)
	}

	for _, fn := range s.unsubscribe {
		fn()
	}
	s.hub.Close()
	if stopRegistry != nil {
		stopRegistry()
	}
	s.sessions.Close()
	s.logger.Info("Closed live session")

	// Sync logger before exit
	_ = s.logger.Sync()

	return shutdownErr
}
