package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer() *Server {
	return New(Config{
		Addr:       ":0",
		Auth:       AuthConfig{SessionSecret: "test-secret", SessionTTL: time.Hour},
		CORSOrigin: "*",
	})
}

func TestAdminRoutesRejectWithoutSession(t *testing.T) {
	srv := testServer()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/admin/logout"},
		{http.MethodGet, "/admin/submissions"},
		{http.MethodGet, "/admin/file/0f2e8f0a-9c1e-4f7b-8f6d-2b1a3c4d5e6f"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 without session, got %d", rt.method, rt.path, rr.Code)
		}
	}
}

func TestLoginThenGuardedRoute(t *testing.T) {
	srv := testServer()

	login := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, login)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("login: expected a session cookie")
	}

	// The guard passes; the method check fires before any store access.
	req := httptest.NewRequest(http.MethodPost, "/admin/submissions", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 past the guard, got %d", rr.Code)
	}

	// Logout, then the same session is still cryptographically valid
	// but the browser no longer holds it; simulate by dropping the
	// cookie and expecting the guard to fire again.
	logout := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	logout.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, logout)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/submissions", nil)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after logout, got %d", rr.Code)
	}
}

func TestHealthzWithoutStores(t *testing.T) {
	srv := testServer()

	// No DB or blob client wired: the probe must not report healthy.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" {
		t.Fatalf("unexpected status: %v", body["status"])
	}
	if body["database"] != "unconfigured" || body["blob"] != "unconfigured" {
		t.Fatalf("unexpected store status: db=%v blob=%v", body["database"], body["blob"])
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	h := rr.Header()
	if h.Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS origin header")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodOptions, "/submit-poa", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
}

func TestCORSReflectsOriginWithCredentials(t *testing.T) {
	srv := testServer()

	// A wildcard config echoes the request Origin so browsers accept
	// the credentialed response.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	h := rr.Header()
	if got := h.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected reflected origin, got %q", got)
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials header")
	}
	if h.Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin, got %q", h.Get("Vary"))
	}
}
