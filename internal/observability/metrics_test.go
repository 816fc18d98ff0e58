package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registered(t *testing.T) {
	m := NewMetrics()
	m.RecordAuth("login", nil)
	m.RecordAsset("upload", nil)
	m.ObserveUpload(2048)

	families, err := m.registry.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}
	for _, name := range []string{
		"imagevault_auth_events_total",
		"imagevault_asset_operations_total",
		"imagevault_asset_upload_bytes",
		"go_goroutines",
	} {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

func TestMetrics_RecordOutcome(t *testing.T) {
	m := NewMetrics()

	m.RecordAsset("delete", nil)
	m.RecordAsset("delete", errors.New("boom"))
	m.RecordAsset("delete", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssetOperations.WithLabelValues("delete", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AssetOperations.WithLabelValues("delete", OutcomeError)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuth("login", nil)
		m.RecordAsset("upload", nil)
		m.ObserveUpload(1)
	})
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/image/:filename", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/image/cat.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/image/:filename", http.MethodGet, "404")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "imagevault_http_requests_total")
}
