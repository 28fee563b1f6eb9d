package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/babui-rent/babui/internal/security/audit"
	"github.com/babui-rent/babui/internal/security/auth"
	"github.com/babui-rent/babui/internal/security/ratelimit"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := GetClaimsFromContext(r.Context()); c != nil {
			w.Header().Set("X-User", c.UserID)
		}
		w.Header().Set("X-Seen-Request-ID", audit.RequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware(t *testing.T) {
	tm, _ := auth.NewTokenManager("secret", "")
	token, _ := tm.GenerateToken("landlord-1", "landlord", time.Hour)
	h := JWTMiddleware(tm, audit.NewLogger(quiet, nil), quiet)(okHandler())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/properties", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && rec.Header().Get("X-User") != "landlord-1" {
				t.Fatal("claims not placed in context")
			}
		})
	}
}

func TestJWTMiddlewareDisabled(t *testing.T) {
	h := JWTMiddleware(nil, audit.NewLogger(quiet, nil), quiet)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/properties/p1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, quiet)(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=gulshan", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("203.0.113.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("first = %d", rec.Code)
	}
	rec := send("203.0.113.1:5001")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := send("203.0.113.2:5000"); rec.Code != http.StatusOK {
		t.Fatalf("other ip = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/geocode/search?q=gulshan", nil)
	req.RemoteAddr = "203.0.113.1:5002"
	req.Header.Set("X-Forwarded-For", "192.0.2.99")
	spoofed := httptest.NewRecorder()
	h.ServeHTTP(spoofed, req)
	if spoofed.Code != http.StatusTooManyRequests {
		t.Fatalf("rotated X-Forwarded-For = %d, want 429", spoofed.Code)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	h := Chain(okHandler(), RequestID(quiet), CORS([]string{"http://localhost:3000"}))

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "abc-123" || rec.Header().Get("X-Seen-Request-ID") != "abc-123" {
		t.Fatalf("request id not propagated: %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatal("allowed origin not echoed")
	}

	pre := httptest.NewRequest(http.MethodOptions, "/api/properties", nil)
	pre.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("preflight = %d, origin %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("generated request id missing")
	}
}

func TestValidateJSONBody(t *testing.T) {
	h := ValidateJSONBody(quiet)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader("id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if ip := ClientIP(req); ip != "10.0.0.1" {
		t.Fatalf("ClientIP = %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if ip := ClientIP(req); ip != "10.0.0.1" {
		t.Fatalf("ClientIP trusted X-Forwarded-For: %q", ip)
	}
}
