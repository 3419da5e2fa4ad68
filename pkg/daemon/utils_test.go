package daemon

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	router := gin.New()
	router.Use(ginLogger(logger))
	router.GET("/status", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/logs", func(c *gin.Context) { c.String(http.StatusOK, "line") })
	router.PUT("/battery-guard", func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusBadRequest, errors.New("bad body"))
	})
	router.POST("/safety-revert", func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusInternalServerError, errors.New("SetDisplayConfig failed"))
	})

	tests := []struct {
		method  string
		target  string
		level   logrus.Level
		message string
		err     string
	}{
		{http.MethodGet, "/status", logrus.TraceLevel, "API: GET /status 200", ""},
		{http.MethodGet, "/logs?n=5", logrus.DebugLevel, "API: GET /logs 200", ""},
		{http.MethodPut, "/battery-guard", logrus.WarnLevel, "API: PUT /battery-guard rejected with 400", "bad body"},
		{http.MethodPost, "/safety-revert", logrus.ErrorLevel, "API: POST /safety-revert failed with 500", "SetDisplayConfig failed"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			hook.Reset()
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, "API", entry.Data["category"])
			assert.Contains(t, entry.Data, "took")
			if tt.err != "" {
				assert.Equal(t, tt.err, entry.Data["error"])
			} else {
				assert.NotContains(t, entry.Data, "error")
			}
		})
	}

	hook.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/logs?n=5", nil))
	assert.Equal(t, "n=5", hook.LastEntry().Data["query"])
}
