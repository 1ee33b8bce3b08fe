package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("operation", "update"),
		attribute.String("parameter_key", "flag"),
		attribute.String("result", "hit"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("operation"), attrs[0].Key)
	assert.Equal(t, attribute.Key("result"), attrs[1].Key)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordMutation(context.Background(), "update", true)
	m.RecordConflict(context.Background(), "update")
	m.RecordCache(context.Background(), "get", "miss")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordMutation(context.Background(), "set_override", false)
	m.RecordEventPublish(context.Background(), "parameter.updated", false)
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/ping", "204")))
}
