package fhir

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newErrorHandlerServer() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler("/fhir", e.DefaultHTTPErrorHandler)
	e.GET("/fhir/Condition/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fhir/broken", func(c echo.Context) error {
		return errors.New("pool exhausted on db-primary")
	})
	return e
}

func serveErr(e *echo.Echo, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHTTPErrorHandler_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		accept     string
		wantStatus int
		wantCode   string
		format     Format
	}{
		{"method not allowed", http.MethodDelete, "/fhir/Condition/x", "", http.StatusMethodNotAllowed, IssueTypeNotSupported, FormatJSON},
		{"unknown resource", http.MethodGet, "/fhir/Observation/x", "", http.StatusNotFound, IssueTypeNotFound, FormatJSON},
		{"unknown resource as xml", http.MethodGet, "/fhir/Observation/x", "application/fhir+xml", http.StatusNotFound, IssueTypeNotFound, FormatXML},
		{"unrendered handler error", http.MethodGet, "/fhir/broken", "", http.StatusInternalServerError, IssueTypeException, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveErr(newErrorHandlerServer(), tt.method, tt.target, tt.accept)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			var oo OperationOutcome
			if err := Unmarshal(tt.format, rec.Body.Bytes(), &oo); err != nil {
				t.Fatalf("decode outcome: %v\n%s", err, rec.Body.String())
			}
			if oo.ResourceType != "OperationOutcome" || len(oo.Issue) != 1 || oo.Issue[0].Code != tt.wantCode {
				t.Errorf("unexpected outcome %+v", oo)
			}
		})
	}
}

func TestHTTPErrorHandler_HidesInternalError(t *testing.T) {
	rec := serveErr(newErrorHandlerServer(), http.MethodGet, "/fhir/broken", "")
	if strings.Contains(rec.Body.String(), "db-primary") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}

func TestHTTPErrorHandler_HeadHasNoBody(t *testing.T) {
	rec := serveErr(newErrorHandlerServer(), http.MethodHead, "/fhir/Observation/x", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestHTTPErrorHandler_OtherPathsUseFallback(t *testing.T) {
	rec := serveErr(newErrorHandlerServer(), http.MethodGet, "/fhirish", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "OperationOutcome") {
		t.Errorf("expected echo's default body outside the FHIR base, got %s", rec.Body.String())
	}
}
