package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bjhnbjh/vibecoding-camera/internal/handler"
)

const scrapeBody = "# TYPE camera_http_requests_total counter"

// scrape sends GET /metrics through a middleware guarding a fake exporter.
// authHeader is sent verbatim when non-empty.
func scrape(mw *MetricsAuthMiddleware, authHeader string) (*httptest.ResponseRecorder, bool) {
	reached := false
	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.Write([]byte(scrapeBody))
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	mw.Handler(exporter).ServeHTTP(rec, req)
	return rec, reached
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestMetricsAuthMiddleware_AllowsValidCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prometheus", "scrape-secret", testLogger())

	rec, reached := scrape(mw, basic("prometheus", "scrape-secret"))

	if !reached || rec.Code != http.StatusOK {
		t.Fatalf("expected exporter to serve 200, got %d (reached=%v)", rec.Code, reached)
	}
	if rec.Body.String() != scrapeBody {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Error("successful scrapes should not carry a challenge")
	}
}

func TestMetricsAuthMiddleware_RejectsWithJSONChallenge(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prometheus", "scrape-secret", testLogger())

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bearer instead of basic", "Bearer scrape-secret"},
		{"undecodable basic", "Basic %%%"},
		{"wrong username", basic("grafana", "scrape-secret")},
		{"wrong password", basic("prometheus", "scrape-secreT")},
		{"both empty", basic("", "")},
		{"credentials swapped", basic("scrape-secret", "prometheus")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := scrape(mw, tt.header)

			if reached {
				t.Fatal("exporter must not run without valid credentials")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="metrics"` {
				t.Errorf("unexpected WWW-Authenticate header: %q", got)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("expected JSON content type, got %q", ct)
			}

			var body handler.JSONError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not the JSON error envelope: %v (%q)", err, rec.Body.String())
			}
			if body.Error.Code != "unauthorized" || body.Error.Message == "" {
				t.Errorf("unexpected error envelope %+v", body.Error)
			}
			if strings.Contains(rec.Body.String(), "scrape-secret") {
				t.Error("response must not echo credentials")
			}
		})
	}
}

func TestMetricsAuthMiddleware_CredentialLengthsDoNotMatter(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prometheus", "scrape-secret", testLogger())

	candidates := []struct {
		user, pass string
	}{
		{"p", "s"},
		{"prometheus", "scrape-secret-with-suffix"},
		{"prometheus", "scrape-secre"},
		{strings.Repeat("p", 4096), strings.Repeat("s", 4096)},
		{"prometheus\x00", "scrape-secret"},
	}

	for _, c := range candidates {
		if mw.matches(c.user, c.pass) {
			t.Errorf("matches(%q..., %q...) should be false", trim(c.user), trim(c.pass))
		}
		if rec, reached := scrape(mw, basic(c.user, c.pass)); reached || rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for %d/%d byte credentials, got %d", len(c.user), len(c.pass), rec.Code)
		}
	}

	if !mw.matches("prometheus", "scrape-secret") {
		t.Error("exact credentials should match")
	}
}

func TestMetricsAuthMiddleware_PasswordWithColon(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prometheus", "a:b:c", testLogger())

	if rec, reached := scrape(mw, basic("prometheus", "a:b:c")); !reached || rec.Code != http.StatusOK {
		t.Errorf("expected a colon in the password to be accepted, got %d", rec.Code)
	}
}

func TestMetricsAuthMiddleware_OnlyOneCredentialConfigured(t *testing.T) {
	mw := NewMetricsAuthMiddleware("", "scrape-secret", testLogger())

	if _, reached := scrape(mw, ""); reached {
		t.Error("a configured password alone should still require auth")
	}
	if rec, reached := scrape(mw, basic("", "scrape-secret")); !reached || rec.Code != http.StatusOK {
		t.Errorf("expected empty username with the password to pass, got %d", rec.Code)
	}
}

func TestMetricsAuthMiddleware_DisabledWhenUnconfigured(t *testing.T) {
	mw := NewMetricsAuthMiddleware("", "", testLogger())

	for _, header := range []string{"", basic("anyone", "anything")} {
		rec, reached := scrape(mw, header)
		if !reached || rec.Code != http.StatusOK {
			t.Errorf("expected pass-through with header %q, got %d", header, rec.Code)
		}
	}
}

func trim(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
