package server

import (
	"time"

	"github.com/guidecms/media-api/src/handlers"
)

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	s.router.GET("/health", handlers.Health(s.store, s.logger))

	s.setupAssetRoutes()
	s.setupStreamRoutes()
}

// setupAssetRoutes configures the remote asset endpoints.
func (s *Server) setupAssetRoutes() {
	assets := s.router.Group("/api/v1/assets")
	{
		assets.POST("/upload", handlers.AssetUploadHandler(s.store, s.logger, time.Now))
		assets.DELETE("/object", handlers.AssetDeleteHandler(s.store, s.logger))
		assets.DELETE("/tree", handlers.AssetTreeDeleteHandler(s.store, s.logger))
	}
}

// setupStreamRoutes configures the media relay endpoints.
func (s *Server) setupStreamRoutes() {
	stream := s.router.Group("/api/v1/stream")
	{
		stream.GET("", handlers.StreamRelayHandler(s.originGuard, s.relayClient, s.logger))
		stream.GET("/download", handlers.DownloadRelayHandler(s.originGuard, s.relayClient, s.logger))
	}
}
