package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serveSecurity(cfg SecurityConfig) http.Header {
	h := Security(cfg)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil))
	return rec.Header()
}

func TestSecurity_Headers(t *testing.T) {
	got := serveSecurity(SecurityConfig{})

	for _, kv := range apiHeaders {
		if v := got.Get(kv[0]); v != kv[1] {
			t.Errorf("%s = %q, want %q", kv[0], v, kv[1])
		}
	}
	if v := got.Get("Strict-Transport-Security"); v != "max-age=31536000; includeSubDomains; preload" {
		t.Errorf("HSTS = %q", v)
	}
}

func TestSecurity_HSTS(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecurityConfig
		want string
	}{
		{"development omits", SecurityConfig{IsDevelopment: true}, ""},
		{"custom max age", SecurityConfig{HSTSMaxAge: time.Hour}, "max-age=3600; includeSubDomains; preload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := serveSecurity(tt.cfg).Get("Strict-Transport-Security"); v != tt.want {
				t.Errorf("HSTS = %q, want %q", v, tt.want)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	tests := []struct {
		name          string
		maxBytes      int64
		contentLength int64
		body          string
		wantStatus    int
	}{
		{"activity form fits", 1024, 10, "small body", http.StatusOK},
		{"declared length over limit", 10, 100, strings.Repeat("x", 100), http.StatusRequestEntityTooLarge},
		{"photo under upload limit", 10 << 20, 2 << 20, strings.Repeat("x", 2<<20), http.StatusOK},
		// Chunked: only the reader cap can catch it.
		{"undeclared length over limit", 10, -1, strings.Repeat("x", 100), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := MaxBodySize(tt.maxBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.Copy(io.Discard, r.Body); err != nil {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.contentLength > tt.maxBytes && !strings.Contains(rec.Body.String(), `"code":"PAYLOAD_TOO_LARGE"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}
