package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestTimeout_CompletesWithinDeadline(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil), rec)

	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestTimeout(5 * time.Second)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

type timeoutOutcome struct {
	ResourceType string `json:"resourceType"`
	Issue        []struct {
		Code string `json:"code"`
	} `json:"issue"`
}

func TestRequestTimeout_ReturnsTimeoutOnExpiry(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil), rec)

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		<-ctx.Done()
		return fmt.Errorf("search conditions: %w", ctx.Err())
	}

	if err := RequestTimeout(20 * time.Millisecond)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}

	var outcome timeoutOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if outcome.ResourceType != "OperationOutcome" || len(outcome.Issue) != 1 || outcome.Issue[0].Code != "timeout" {
		t.Errorf("unexpected outcome %+v", outcome)
	}
}

// A handler that writes after its deadline must finish before the middleware
// returns, so the response is never touched once echo recycles the context.
// Run with -race.
func TestRequestTimeout_HandlerWritesAfterDeadline(t *testing.T) {
	e := echo.New()
	var finished atomic.Bool
	e.GET("/fhir/Condition", func(c echo.Context) error {
		<-c.Request().Context().Done()
		err := c.JSON(http.StatusInternalServerError, map[string]string{"late": "write"})
		finished.Store(true)
		return err
	}, RequestTimeout(10*time.Millisecond))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil))

	if !finished.Load() {
		t.Fatal("handler was still running after ServeHTTP returned")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected the handler's own response, got %d", rec.Code)
	}
	if strings.Count(rec.Body.String(), "{") != 1 {
		t.Errorf("expected a single response body, got %s", rec.Body.String())
	}
}

func TestRequestTimeout_CommittedResponseKept(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil), rec)

	handler := func(c echo.Context) error {
		<-c.Request().Context().Done()
		if err := c.NoContent(http.StatusNoContent); err != nil {
			return err
		}
		return c.Request().Context().Err()
	}

	if err := RequestTimeout(10 * time.Millisecond)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("expected the committed 204 to stand, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestTimeout_OtherErrorsPassThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	want := errors.New("store unavailable")
	handler := func(c echo.Context) error { return want }

	if err := RequestTimeout(time.Second)(handler)(c); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	handler := func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline")
		}
		return nil
	}
	if err := RequestTimeout(0)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_PanicReachesRecovery(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Condition", nil), rec)

	handler := func(c echo.Context) error {
		panic("boom")
	}

	h := Recovery(zerolog.Nop())(RequestTimeout(time.Second)(handler))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
