package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecured(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/*any", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecured(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Errorf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_CacheControl(t *testing.T) {
	opt := SecurityOptions{RevalidatePrefixes: []string{"", "/api/"}}

	h := serveSecured(t, opt, nil, httptest.NewRequest(http.MethodGet, "/api/v1/responders", nil))
	if h.Get("Cache-Control") != "private, no-cache" || h.Get("Pragma") != "" {
		t.Fatalf("admin API cache headers: %v", h)
	}
	h = serveSecured(t, opt, nil, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if h.Get("Cache-Control") != "" {
		t.Fatalf("swagger response got cache headers: %v", h)
	}

	opt.NoStore = true
	h = serveSecured(t, opt, nil, httptest.NewRequest(http.MethodGet, "/api/v1/responders", nil))
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("NoStore should win: %v", h)
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: 365 * 24 * time.Hour, EnablePolicy: true}

	plain := serveSecured(t, opt, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS sent over plain HTTP")
	}
	if plain.Get("X-Permitted-Cross-Domain-Policies") != "none" || plain.Get("Permissions-Policy") == "" {
		t.Fatalf("policy headers missing: %v", plain)
	}

	tlsReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	if got := serveSecured(t, opt, nil, tlsReq).Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains; preload" {
		t.Fatalf("HSTS over TLS = %q", got)
	}

	proxied := httptest.NewRequest(http.MethodGet, "/health", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	got := serveSecured(t, SecurityOptions{EnableHSTS: true}, nil, proxied).Get("Strict-Transport-Security")
	if got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default HSTS behind proxy = %q", got)
	}
}

func TestSecurityHeaders_ExposeRequestID(t *testing.T) {
	cases := []struct {
		name     string
		existing string
		want     string
	}{
		{"empty", "", "X-Request-ID"},
		{"append", "ETag", "ETag, X-Request-ID"},
		{"already listed", "ETag, x-request-id", "ETag, x-request-id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header(requestIDHeader, "rid-1")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecured(t, SecurityOptions{}, pre, httptest.NewRequest(http.MethodGet, "/health", nil))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q, want %q", got, tc.want)
			}
		})
	}
}
