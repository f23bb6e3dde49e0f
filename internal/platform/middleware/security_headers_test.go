package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runSecurityHeaders(t *testing.T, hsts bool) http.Header {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil), rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	if err := SecurityHeaders(hsts)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Header()
}

func TestSecurityHeaders_Base(t *testing.T) {
	h := runSecurityHeaders(t, false)

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := h.Get(header); got != want {
			t.Errorf("header %s: expected %q, got %q", header, want, got)
		}
	}
	if got := h.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS header, got %q", got)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	h := runSecurityHeaders(t, true)
	if got := h.Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("expected %q, got %q", hstsValue, got)
	}
}
