package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vdt-app/internal/config"
	"vdt-app/internal/handler"
	"vdt-app/internal/middleware"
	"vdt-app/internal/repository"
	"vdt-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	router    *gin.Engine
	db        *sqlx.DB
	cfg       *config.Config
	logger    *zap.Logger
	accessLog *logrus.Logger
	limiter   *middleware.RateLimiter
	tokens    *service.TokenService
	hasher    service.PasswordHasher
}

// Option customizes a Server; used by tests to control time and output.
type Option func(*Server)

// WithClock makes the rate limiter and token service read time from now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.limiter = middleware.NewRateLimiter(s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window, now)
		s.tokens = service.NewTokenService(s.cfg.Auth.JWTSecret, now)
	}
}

// WithAccessLog replaces the JSON access logger.
func WithAccessLog(log *logrus.Logger) Option {
	return func(s *Server) { s.accessLog = log }
}

func NewServer(db *sqlx.DB, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	hasher, err := service.NewPasswordHasher(cfg.Auth.PasswordHash, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	// Initialize server with DB and Logger
	s := &Server{
		router:    router,
		db:        db,
		cfg:       cfg,
		logger:    logger,
		accessLog: middleware.NewAccessLogger(),
		limiter:   middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, nil),
		tokens:    service.NewTokenService(cfg.Auth.JWTSecret, nil),
		hasher:    hasher,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Setup routes
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(s.accessLog),
		middleware.RateLimit(s.limiter, s.logger),
		s.cors(),
	)

	// Initialize Auth components
	authRepo := repository.NewAuthRepository(s.db, s.logger)
	authService, err := service.NewAuthService(authRepo, s.hasher, s.tokens, s.logger)
	if err != nil {
		return err
	}
	authHandler := handler.NewAuthHandler(authService, s.logger)

	studentRepo := repository.NewStudentRepository(s.db, s.logger)
	studentHandler := handler.NewStudentHandler(studentRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	s.router.POST("/signup", authHandler.Signup)
	s.router.POST("/login", authHandler.Login)

	// Authenticated routes
	return s.registerProtected(middleware.StudentPolicy, studentHandler.Routes())
}

// registerProtected mounts every handler behind Authenticate and the
// roles its route is given in policy. A handler without a policy entry,
// or a policy entry without a handler, is a wiring error.
func (s *Server) registerProtected(policy middleware.Policy, routes map[middleware.RouteKey]gin.HandlerFunc) error {
	for route := range policy {
		if _, ok := routes[route]; !ok {
			return fmt.Errorf("no handler for %s %s", route.Method, route.Path)
		}
	}

	authenticate := middleware.Authenticate(s.tokens, s.logger)
	for route, h := range routes {
		roles, ok := policy[route]
		if !ok {
			return fmt.Errorf("no policy for %s %s", route.Method, route.Path)
		}
		s.router.Handle(route.Method, route.Path, authenticate, middleware.Authorize(roles...), h)
	}
	return nil
}

func (s *Server) cors() gin.HandlerFunc {
	origin := s.cfg.Server.CORSOrigin
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the rate limiter so its sweeper can be started.
func (s *Server) Limiter() *middleware.RateLimiter {
	return s.limiter
}

// Hasher returns the password hasher used for signups and seeding.
func (s *Server) Hasher() service.PasswordHasher {
	return s.hasher
}

// Run serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
