package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		// Static routes pass through.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/track", "/api/v1/track"},

		// Parameters become one label per route.
		{"/api/v1/satellites/:norad_id/track", "/api/v1/satellites/{norad_id}/track"},
		{"/api/v1/satellites/:norad_id/elements", "/api/v1/satellites/{norad_id}/elements"},
		{"/static/*filepath", "/static/{filepath}"},

		// Unmatched requests have no route.
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			if got := normalizeRoute(tt.route); got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.route, got, tt.want)
			}
		})
	}
}

// TestMiddlewareCardinality verifies that 100 distinct catalog numbers
// produce one path label, and unknown paths fall into "other".
func TestMiddlewareCardinality(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/v1/satellites/:norad_id/elements", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	label := "/api/v1/satellites/{norad_id}/elements"
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(label, http.MethodGet, "204"))
	otherBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "404"))

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/satellites/"+strconv.Itoa(25544+i)+"/elements", nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(label, http.MethodGet, "204")) - before; got != 100 {
		t.Errorf("route counter increased by %v, want 100", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "404")) - otherBefore; got != 1 {
		t.Errorf("other counter increased by %v, want 1", got)
	}
}

func TestRecordPropagation(t *testing.T) {
	okBefore := testutil.ToFloat64(samplesTotal.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(samplesTotal.WithLabelValues("failed"))

	RecordPropagation(3*time.Millisecond, 10, 2)

	if got := testutil.ToFloat64(samplesTotal.WithLabelValues("ok")) - okBefore; got != 10 {
		t.Errorf("ok samples += %v, want 10", got)
	}
	if got := testutil.ToFloat64(samplesTotal.WithLabelValues("failed")) - failedBefore; got != 2 {
		t.Errorf("failed samples += %v, want 2", got)
	}
}

func TestRecordFrameFallbackAndDataset(t *testing.T) {
	before := testutil.ToFloat64(frameFallbacksTotal.WithLabelValues("spherical"))
	RecordFrameFallback("spherical")
	if got := testutil.ToFloat64(frameFallbacksTotal.WithLabelValues("spherical")) - before; got != 1 {
		t.Errorf("fallbacks += %v, want 1", got)
	}

	SetDataset(42, 12.5)
	if got := testutil.ToFloat64(datasetCount); got != 42 {
		t.Errorf("dataset count = %v", got)
	}
	if got := testutil.ToFloat64(datasetAgeSeconds); got != 12.5 {
		t.Errorf("dataset age = %v", got)
	}
}

func TestStreamMetrics(t *testing.T) {
	active := testutil.ToFloat64(streamsActive)
	connects := testutil.ToFloat64(streamConnectionsTotal.WithLabelValues("connect"))
	errs := testutil.ToFloat64(streamErrorsTotal.WithLabelValues("rate_limit"))

	StreamOpened()
	if got := testutil.ToFloat64(streamsActive) - active; got != 1 {
		t.Errorf("active += %v, want 1", got)
	}
	StreamClosed()
	if got := testutil.ToFloat64(streamsActive); got != active {
		t.Errorf("active = %v after close, want %v", got, active)
	}
	if got := testutil.ToFloat64(streamConnectionsTotal.WithLabelValues("connect")) - connects; got != 1 {
		t.Errorf("connects += %v, want 1", got)
	}

	IncStreamErrors("rate_limit")
	if got := testutil.ToFloat64(streamErrorsTotal.WithLabelValues("rate_limit")) - errs; got != 1 {
		t.Errorf("errors += %v, want 1", got)
	}
}
