package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/drivers/remote"
)

// Health reports service status and remote store reachability. The probe
// opens (and closes) one real session, so it also exercises the
// credential - a misconfigured password shows up here, not on the first
// admin upload.
func Health(store remote.ObjectStore, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dependencies := gin.H{}
		healthy := true

		if err := store.Ping(ctx); err != nil {
			logger.WithError(err).Error("remote store health check failed")
			dependencies["remote_store"] = "unhealthy"
			healthy = false
		} else {
			dependencies["remote_store"] = "ok"
		}

		status := gin.H{
			"status":       "ok",
			"timestamp":    time.Now().Format(time.RFC3339),
			"service":      "media-api",
			"dependencies": dependencies,
		}

		if !healthy {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}

		c.JSON(http.StatusOK, status)
	}
}
