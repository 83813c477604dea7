package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg, Config{ServiceName: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/invoices/1", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/invoices/:id", "404"))
	assert.Equal(t, float64(3), got)
}

func TestHTTPMetricsReuseOnDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)
	_, err = newHTTPMetrics(reg, Config{})
	require.NoError(t, err)
}
