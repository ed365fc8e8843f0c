package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(evaluationsTotal.WithLabelValues("VIDEO"))
	ObserveEvaluation("VIDEO")
	assert.Equal(t, before+1, testutil.ToFloat64(evaluationsTotal.WithLabelValues("VIDEO")))

	before = testutil.ToFloat64(targetsRoutedTotal.WithLabelValues("x", "rejected"))
	ObserveRouted("x", "rejected")
	assert.Equal(t, before+1, testutil.ToFloat64(targetsRoutedTotal.WithLabelValues("x", "rejected")))

	before = testutil.ToFloat64(publishAttemptsTotal.WithLabelValues("youtube", "failed"))
	ObservePublish("youtube", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(publishAttemptsTotal.WithLabelValues("youtube", "failed")))
}

func TestInstrumentAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Register()
	Register()

	r := gin.New()
	r.Use(Instrument())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "postgate_http_requests_total")
}
