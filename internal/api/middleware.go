package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
)

const (
	// OwnerHeader identifies the user a request acts for
	OwnerHeader = "X-Owner-ID"
	// DeviceHeader optionally names the recording device
	DeviceHeader = "X-Device-ID"

	ownerKey = "owner_id"
)

// requireOwner rejects requests without an owner id
func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" {
			respondError(c, newError(http.StatusUnauthorized, "missing_owner", errors.New("missing "+OwnerHeader+" header")))
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// requestLogger logs one line per request
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if owner := ownerID(c); owner != "" {
			kv = append(kv, "owner_id", owner)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("request rejected", kv...)
		default:
			log.Debug("request served", kv...)
		}
	}
}

// requestMetrics records request counts and latency by route template
func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
