package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/drivers/remote"
)

// MaxAssetSize bounds the in-memory upload buffer. Uploads are a single
// fully-materialized buffer per object; there is no chunked path.
const MaxAssetSize = 200 * 1024 * 1024

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// AssetUploadHandler accepts a multipart upload (file + tenant + asset
// type tag), pushes it to the remote store and returns the stable public
// URL. The metadata layer persists that URL; this handler does not.
func AssetUploadHandler(store remote.ObjectStore, logger *logrus.Logger, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		tenant := strings.TrimSpace(c.PostForm("tenant"))
		assetType := strings.TrimSpace(c.PostForm("type"))
		if tenant == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant is required"})
			return
		}
		if assetType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
			return
		}
		if err := remote.ValidateTenant(tenant); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant: " + err.Error()})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > MaxAssetSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds maximum size"})
			return
		}

		src, err := fileHeader.Open()
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("assets: open upload file failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, MaxAssetSize+1))
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("assets: read upload body failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		if len(data) > MaxAssetSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds maximum size"})
			return
		}

		p := remote.AssetPath{
			Tenant:   tenant,
			FileName: buildAssetName(assetType, fileHeader.Filename, clock()),
		}

		url, err := store.UploadObject(c.Request.Context(), p, data)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"path":       p.String(),
				"error":      err.Error(),
			}).Error("assets: upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "asset transfer failed"})
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       p.String(),
			"size":       len(data),
		}).Info("assets: uploaded")

		c.JSON(http.StatusOK, gin.H{
			"path": p.String(),
			"url":  url,
		})
	}
}

type deleteObjectRequest struct {
	Tenant   string `json:"tenant" binding:"required"`
	FileName string `json:"fileName" binding:"required"`
}

// AssetDeleteHandler removes a single object. An already-absent target is
// success:false with a 200, never an HTTP error.
func AssetDeleteHandler(store remote.ObjectStore, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		var req deleteObjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant and fileName are required"})
			return
		}

		p := remote.AssetPath{Tenant: req.Tenant, FileName: req.FileName}
		if err := p.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		removed, err := store.DeleteObject(c.Request.Context(), p)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"path":       p.String(),
				"error":      err.Error(),
			}).Error("assets: delete object failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": removed,
			"path":    p.String(),
		})
	}
}

type deleteTreeRequest struct {
	Tenant string `json:"tenant" binding:"required"`
}

// AssetTreeDeleteHandler removes a tenant's whole asset subtree, with the
// same absence-is-not-failure convention.
func AssetTreeDeleteHandler(store remote.ObjectStore, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		var req deleteTreeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant is required"})
			return
		}
		if err := remote.ValidateTenant(req.Tenant); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		removed, err := store.DeleteTree(c.Request.Context(), req.Tenant)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"tenant":     req.Tenant,
				"error":      err.Error(),
			}).Error("assets: delete tree failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tree delete failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": removed,
			"path":    remote.Namespace + "/" + req.Tenant,
		})
	}
}

// buildAssetName derives the stored filename from the asset-type tag, an
// HHMMSS stamp and the original extension: background_171234.mp4. The
// remote path must never carry raw user input, so both parts are reduced
// to a safe character set first.
func buildAssetName(assetType, original string, now time.Time) string {
	base := unsafeNameChars.ReplaceAllString(strings.ToLower(assetType), "_")
	base = strings.Trim(base, "_.")
	if base == "" {
		base = "asset"
	}

	ext := strings.ToLower(filepath.Ext(original))
	ext = unsafeNameChars.ReplaceAllString(ext, "")

	return base + "_" + now.Format("150405") + ext
}
