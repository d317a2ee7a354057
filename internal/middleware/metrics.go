package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/metrics"
)

// Metrics records one observation per request, labelled with the matched
// route pattern so ids do not explode label cardinality.
func Metrics(recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.RecordHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
