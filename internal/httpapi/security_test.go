package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinstock/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	ta := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	ta.handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get(requestIDHeader); got == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	ta := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()

	ta.handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestCORSAllowsConfiguredOriginOnly(t *testing.T) {
	ta := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	res := httptest.NewRecorder()
	ta.handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("expected allowed origin to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	ta.handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin to be refused, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	ta := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		ta.handler.ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	ta := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	ta.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestUnknownRouteAndMethodUseEnvelope(t *testing.T) {
	ta := newTestAPI(t)

	res, env := ta.do(t, http.MethodGet, "/api/v2/nothing", "", nil)
	if res.Code != http.StatusNotFound || env.OK || env.Code != CodeRouteNotFound {
		t.Fatalf("expected 404 envelope, got %d %+v", res.Code, env)
	}

	res, env = ta.do(t, http.MethodPut, "/healthz", "", nil)
	if res.Code != http.StatusMethodNotAllowed || env.Code != CodeMethodNotAllowed {
		t.Fatalf("expected 405 envelope, got %d %+v", res.Code, env)
	}
}

func TestParsePositiveIntCaps(t *testing.T) {
	if got := parsePositiveInt("9999", 50, 100); got != 100 {
		t.Fatalf("expected capped value 100, got %d", got)
	}
	if got := parsePositiveInt("", 50, 100); got != 50 {
		t.Fatalf("expected fallback 50, got %d", got)
	}
	if got := parsePositiveInt("-3", 50, 100); got != 50 {
		t.Fatalf("expected fallback on negative input, got %d", got)
	}
	if got := parsePositiveInt("7", 1, 0); got != 7 {
		t.Fatalf("expected uncapped 7, got %d", got)
	}
}

func TestParseBound(t *testing.T) {
	from, err := parseBound("2026-01-05", false)
	if err != nil || from.Hour() != 0 {
		t.Fatalf("unexpected lower bound %v (%v)", from, err)
	}
	to, err := parseBound("2026-01-05", true)
	if err != nil || to.Hour() != 23 || to.Day() != 5 {
		t.Fatalf("expected end of day, got %v (%v)", to, err)
	}
	exact, err := parseBound("2026-01-05T10:00:00+07:00", true)
	if err != nil || exact.Hour() != 3 {
		t.Fatalf("expected RFC 3339 converted to UTC, got %v (%v)", exact, err)
	}
	if _, err := parseBound("05/01/2026", false); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
