package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route so probes for
// random paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responderbot_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "responderbot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "responderbot_http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})

	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "responderbot_http_response_size_bytes",
		Help:    "HTTP response body size in bytes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B..1MiB
	}, []string{"method", "route"})

	// slackRetries counts redelivered Slack events by X-Slack-Retry-Reason.
	slackRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responderbot_slack_retries_total",
		Help: "Slack event redeliveries received, by retry reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, slackRetries)
}

// Metrics records Prometheus request metrics labelled by the registered Gin
// route. Requests carrying X-Slack-Retry-Num also bump slackRetries, which is
// the cheapest signal that replies are slower than Slack's three second
// acknowledgement window.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		if c.GetHeader(headerSlackRetryNum) != "" {
			reason := strings.TrimSpace(c.GetHeader(headerSlackRetryReason))
			if reason == "" {
				reason = "unknown"
			}
			slackRetries.WithLabelValues(reason).Inc()
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
