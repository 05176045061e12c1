package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/adstudio-backend/internal/platform/ctxutil"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const accessLogMsg = "HTTP request"

// quietRoutes log at debug so health checks do not flood the access log.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
}

// RequestLogger writes one access line per request once the handler chain
// has finished. Server errors log at error, client errors at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		kv := accessFields(c, route, status, time.Since(start))

		switch {
		case status >= 500:
			log.Error(accessLogMsg, kv...)
		case status >= 400:
			log.Warn(accessLogMsg, kv...)
		case quietRoutes[route]:
			log.Debug(accessLogMsg, kv...)
		default:
			log.Info(accessLogMsg, kv...)
		}
	}
}

func accessFields(c *gin.Context, route string, status int, elapsed time.Duration) []interface{} {
	kv := []interface{}{
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"bytes", c.Writer.Size(),
		"duration_ms", elapsed.Milliseconds(),
	}
	ctx := c.Request.Context()
	if td := ctxutil.GetTraceData(ctx); td != nil {
		kv = append(kv, "trace_id", td.TraceID, "request_id", td.RequestID)
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		kv = append(kv, "user_id", rd.UserID.String())
	}
	if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
		kv = append(kv, "errors", errs.String())
	}
	return kv
}
