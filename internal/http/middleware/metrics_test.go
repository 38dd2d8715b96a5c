package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/v1/responders/:id", func(c *gin.Context) { c.String(http.StatusOK, "rule") })
	r.DELETE("/api/v1/responders/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseGet := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/v1/responders/:id", "200"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/v1/responders/:id", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/responders/7", http.StatusOK},
		{http.MethodGet, "/api/v1/responders/8", http.StatusOK},
		{http.MethodDelete, "/api/v1/responders/7", http.StatusNoContent},
		{http.MethodGet, "/wp-login.php", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/v1/responders/:id", "200")); got != baseGet+2 {
		t.Fatalf("GET route counter = %v, want %v", got, baseGet+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/v1/responders/:id", "204")); got != baseDel+1 {
		t.Fatalf("DELETE route counter = %v, want %v", got, baseDel+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v, want 0", got)
	}
}

func TestMetrics_SlackRetries(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.POST("/slack/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseTimeout := testutil.ToFloat64(slackRetries.WithLabelValues("http_timeout"))
	baseUnknown := testutil.ToFloat64(slackRetries.WithLabelValues("unknown"))

	send := func(num, reason string) {
		req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
		if num != "" {
			req.Header.Set(headerSlackRetryNum, num)
		}
		if reason != "" {
			req.Header.Set(headerSlackRetryReason, reason)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send("", "")
	send("1", "http_timeout")
	send("2", "http_timeout")
	send("1", "")

	if got := testutil.ToFloat64(slackRetries.WithLabelValues("http_timeout")); got != baseTimeout+2 {
		t.Fatalf("http_timeout retries = %v, want %v", got, baseTimeout+2)
	}
	if got := testutil.ToFloat64(slackRetries.WithLabelValues("unknown")); got != baseUnknown+1 {
		t.Fatalf("unknown retries = %v, want %v", got, baseUnknown+1)
	}
}
