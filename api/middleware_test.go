package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParseOriginPolicy(t *testing.T) {
	cases := []struct {
		raw      string
		active   bool
		allowAll bool
	}{
		{"", false, false},
		{" , ,", false, false},
		{"*", true, true},
		{"https://a.example, *", true, true},
		{"https://a.example,https://b.example", true, false},
	}
	for _, tc := range cases {
		p := parseOriginPolicy(tc.raw)
		if p.active() != tc.active || p.allowAll != tc.allowAll {
			t.Errorf("parseOriginPolicy(%q) = %+v", tc.raw, p)
		}
	}

	p := parseOriginPolicy("https://a.example, https://b.example")
	if !p.allows("https://a.example") || p.allows("https://c.example") {
		t.Errorf("allows: %+v", p)
	}
}

func corsTestRouter(rawOrigins string) *gin.Engine {
	r := gin.New()
	r.Use(corsMiddleware(rawOrigins))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestCORSMiddleware(t *testing.T) {
	r := corsTestRouter("https://a.example")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://a.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
		t.Fatalf("allow-origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("vary: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for unlisted origin: %q", got)
	}

	// Preflight short-circuits before the handler.
	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://a.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", w.Code)
	}
}

func TestCORSMiddlewareWildcard(t *testing.T) {
	r := corsTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "" {
		t.Fatalf("wildcard should not vary on origin: %q", got)
	}
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(apiKeyAuthMiddleware("sekrit"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "sekrit")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid key: %d", w.Code)
	}

	// OPTIONS passes without credentials.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	if w.Code == http.StatusUnauthorized {
		t.Fatalf("preflight should bypass auth: %d", w.Code)
	}
}
