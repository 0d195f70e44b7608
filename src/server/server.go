package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/config"
	"github.com/guidecms/media-api/src/drivers/remote"
	"github.com/guidecms/media-api/src/ftpclient"
	"github.com/guidecms/media-api/src/middleware"
	"github.com/guidecms/media-api/src/middleware/logic"
	"github.com/guidecms/media-api/src/scheduler"
	"github.com/guidecms/media-api/src/services/security"
)

// Server holds all dependencies for the API server.
type Server struct {
	cfg    *config.Config
	logger *logrus.Logger
	router *gin.Engine

	store       remote.ObjectStore
	originGuard *security.OriginGuard
	relayClient *http.Client
	probe       *scheduler.Probe
}

// NewServer creates and initializes all server dependencies.
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	if err := s.initStore(); err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	s.initServices()
	s.initRouter()
	s.SetupRoutes()

	if err := s.startBackgroundWorkers(); err != nil {
		return nil, fmt.Errorf("workers init failed: %w", err)
	}

	return s, nil
}

// initStore selects and wires the configured remote backend.
func (s *Server) initStore() error {
	switch s.cfg.StorageDriver {
	case "ftp":
		s.store = remote.NewFTPStore(ftpclient.Config{
			Host:        s.cfg.FTPHost,
			Port:        s.cfg.FTPPort,
			User:        s.cfg.FTPUser,
			Password:    s.cfg.FTPPassword,
			ExplicitTLS: s.cfg.FTPExplicitTLS,
			DialTimeout: s.cfg.FTPDialTimeout,
		}, s.cfg.PublicBaseURL, s.logger)
		s.logger.WithFields(logrus.Fields{
			"driver": "ftp",
			"host":   s.cfg.FTPHost,
		}).Info("remote store initialized")
	case "minio":
		store, err := remote.NewMinioStore(remote.MinioConfig{
			Endpoint:  s.cfg.MinioEndpoint,
			AccessKey: s.cfg.MinioAccessKey,
			SecretKey: s.cfg.MinioSecretKey,
			Bucket:    s.cfg.MinioBucket,
			UseSSL:    s.cfg.MinioUseSSL,
		}, s.cfg.PublicBaseURL, s.logger)
		if err != nil {
			return fmt.Errorf("minio store init failed: %w", err)
		}
		s.store = store
		s.logger.WithFields(logrus.Fields{
			"driver":   "minio",
			"endpoint": s.cfg.MinioEndpoint,
			"bucket":   s.cfg.MinioBucket,
		}).Info("remote store initialized")
	default:
		return fmt.Errorf("unknown storage driver %q", s.cfg.StorageDriver)
	}

	return nil
}

func (s *Server) initServices() {
	s.originGuard = security.NewOriginGuard(s.cfg.AllowedStreamHosts)
	s.logger.WithField("hosts", s.cfg.AllowedStreamHosts).Info("origin guard initialized")

	// No global client timeout: large media bodies stream for minutes.
	// Connection setup and idle reuse are still bounded.
	s.relayClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// initRouter creates and configures the gin router with the
// middleware chain applied in onion order.
func (s *Server) initRouter() {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	rateLimiter := logic.NewRateLimiter(s.cfg)
	s.router.Use(
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.CORS(s.cfg, s.logger),
		rateLimiter.Middleware(),
		middleware.AuditLogger(s.logger),
	)
}

func (s *Server) startBackgroundWorkers() error {
	probe, err := scheduler.StartProbe(s.store, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.probe = probe
	return nil
}

// Run starts the HTTP server and blocks until a shutdown signal.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:    "0.0.0.0:" + s.cfg.Port,
		Handler: s.router,
		// Long timeouts: uploads and relayed streams are large.
		ReadTimeout:    600 * time.Second,
		WriteTimeout:   600 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		s.logger.WithField("port", s.cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("shutting down server...")
	if s.probe != nil {
		s.probe.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("server forced to shutdown")
		return err
	}

	s.logger.Info("server exited")
	return nil
}
