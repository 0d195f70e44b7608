package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/config"
	"github.com/guidecms/media-api/src/server"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Fail fast when credentials are missing.
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"environment":  cfg.Environment,
		"log_level":    cfg.LogLevel,
		"driver":       cfg.StorageDriver,
		"stream_hosts": cfg.AllowedStreamHosts,
		"rate_limit":   cfg.RateLimitPerMin,
	}).Info("starting media API server")

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize server")
	}

	if err := srv.Run(); err != nil {
		logger.WithError(err).Fatal("server terminated")
	}
}
