package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/adstudio-backend/internal/observability"
)

// unmatchedRoute labels 404s so scanners cannot blow up series cardinality.
const unmatchedRoute = "unmatched"

// Metrics records in-flight requests and per-route latency. A nil m is a no-op.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		m.APIInflight(1)
		start := time.Now()
		defer func() {
			m.APIInflight(-1)
			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
		}()
		c.Next()
	}
}
