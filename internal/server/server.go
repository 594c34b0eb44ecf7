package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"nfse-pipeline/internal/config"
	"nfse-pipeline/internal/handler"
	"nfse-pipeline/internal/middleware"
	"nfse-pipeline/pkg/logger"
)

type Server struct {
	echo               *echo.Echo
	cfg                *config.Config
	logger             *logger.Logger
	authMiddleware     echo.MiddlewareFunc
	authHandler        *handler.AuthHandler
	saleHandler        *handler.SaleHandler
	certificateHandler *handler.CertificateHandler
	eventsHandler      *handler.EventsHandler
	healthHandler      *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	verifier middleware.TokenVerifier,
	authHandler *handler.AuthHandler,
	saleHandler *handler.SaleHandler,
	certificateHandler *handler.CertificateHandler,
	eventsHandler *handler.EventsHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:               e,
		cfg:                cfg,
		logger:             log,
		authMiddleware:     middleware.Auth(verifier),
		authHandler:        authHandler,
		saleHandler:        saleHandler,
		certificateHandler: certificateHandler,
		eventsHandler:      eventsHandler,
		healthHandler:      healthHandler,
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)
	s.echo.POST("/auth/login", s.authHandler.Login)

	authed := s.echo.Group("", s.authMiddleware)
	authed.POST("/sales", s.saleHandler.Create)
	authed.GET("/sales", s.saleHandler.List)
	authed.GET("/sales/:id", s.saleHandler.Get)
	authed.POST("/certificates", s.certificateHandler.Upload)
	authed.GET("/certificates", s.certificateHandler.List)
	authed.GET("/events", s.eventsHandler.Stream)
}

func (s *Server) Handler() *echo.Echo {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}
