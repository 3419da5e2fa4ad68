package daemon

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// quietPaths are polled by the tray every few seconds.
var quietPaths = map[string]bool{
	"/status":    true,
	"/readiness": true,
	"/version":   true,
	"/metrics":   true,
}

// ginLogger logs one API line per request. Failed requests carry the handler
// error; routine polling is logged at trace.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handlers may rewrite the path.
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		took := time.Since(start)

		status := c.Writer.Status()
		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		fields := logrus.Fields{
			"category": "API",
			"method":   c.Request.Method,
			"path":     path,
			"status":   status,
			"bytes":    size,
			"took":     took,
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		entry := logger.WithFields(fields)

		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			entry = entry.WithField("error", errs.Last().Error())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Errorf("API: %s %s failed with %d", c.Request.Method, path, status)
		case status >= http.StatusBadRequest:
			entry.Warnf("API: %s %s rejected with %d", c.Request.Method, path, status)
		case c.Request.Method == http.MethodGet && quietPaths[path]:
			entry.Tracef("API: %s %s %d", c.Request.Method, path, status)
		default:
			entry.Debugf("API: %s %s %d", c.Request.Method, path, status)
		}
	}
}
