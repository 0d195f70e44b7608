package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/services/security"
)

// upstreamSnippetLimit bounds how much of an upstream error body is
// echoed back, so a misbehaving origin cannot grow our responses.
const upstreamSnippetLimit = 200

// relayHeaders are copied from the upstream response verbatim.
var relayHeaders = []string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range"}

// StreamRelayHandler relays a range-addressable object from an
// allow-listed origin, so browser range requests (video seeking) work
// against assets that live cross-origin. Stateless per request: validate,
// authorize, forward with the inbound Range header, pipe the body through
// without buffering it.
func StreamRelayHandler(guard *security.OriginGuard, client *http.Client, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := authorizeTarget(c, guard, logger)
		if !ok {
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target.String(), nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target url"})
			return
		}
		if rng := c.GetHeader("Range"); rng != "" {
			req.Header.Set("Range", rng)
		}

		resp, err := client.Do(req)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"host":       target.Hostname(),
				"error":      err.Error(),
			}).Error("relay: upstream fetch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("origin fetch failed: %v", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			snippet := readSnippet(resp.Body)
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"host":       target.Hostname(),
				"status":     resp.StatusCode,
			}).Warn("relay: upstream returned non-success status")
			c.JSON(http.StatusBadGateway, gin.H{
				"error": fmt.Sprintf("upstream status %d: %s", resp.StatusCode, snippet),
			})
			return
		}

		copyRelayHeaders(c, resp)
		c.Header("Access-Control-Allow-Origin", "*")
		c.Status(resp.StatusCode)

		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			// Usually the client seeking away mid-stream; nothing to send back.
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"error":      err.Error(),
			}).Debug("relay: stream interrupted")
		}
	}
}

// DownloadRelayHandler is the forced-download sibling: no range
// propagation, always the full object, with an attachment disposition
// named after the target's last path segment.
func DownloadRelayHandler(guard *security.OriginGuard, client *http.Client, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := authorizeTarget(c, guard, logger)
		if !ok {
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target.String(), nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target url"})
			return
		}

		resp, err := client.Do(req)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"host":       target.Hostname(),
				"error":      err.Error(),
			}).Error("relay: upstream fetch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("origin fetch failed: %v", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet := readSnippet(resp.Body)
			c.JSON(http.StatusBadGateway, gin.H{
				"error": fmt.Sprintf("upstream status %d: %s", resp.StatusCode, snippet),
			})
			return
		}

		filename := path.Base(target.Path)
		if filename == "." || filename == "/" || filename == "" {
			filename = "download"
		}

		copyRelayHeaders(c, resp)
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		c.Status(http.StatusOK)

		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"error":      err.Error(),
			}).Debug("relay: download interrupted")
		}
	}
}

// authorizeTarget runs the validate and authorize steps shared by both
// relay variants. Both failure classes are client errors; no outbound
// connection is attempted for a disallowed host.
func authorizeTarget(c *gin.Context, guard *security.OriginGuard, logger *logrus.Logger) (*url.URL, bool) {
	raw := c.Query("url")

	u, err := guard.Authorize(raw)
	if err != nil {
		if errors.Is(err, security.ErrHostNotAllowed) {
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"url":        raw,
			}).Warn("relay: rejected target outside allow-list")
			c.JSON(http.StatusBadRequest, gin.H{"error": "target host not allowed"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter is missing or malformed"})
		return nil, false
	}

	return u, true
}

func copyRelayHeaders(c *gin.Context, resp *http.Response) {
	for _, h := range relayHeaders {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
}

func readSnippet(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, upstreamSnippetLimit))
	return strings.TrimSpace(string(buf))
}
