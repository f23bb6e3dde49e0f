package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

// RequestTimeout puts a deadline on the request context and runs the handler
// on the request goroutine. Handlers and stores must honour cancellation: a
// handler that returns an error wrapping context.DeadlineExceeded gets a 504
// timeout OperationOutcome. A zero timeout disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout:      timeout,
		ErrorHandler: timeoutErrorHandler,
	})
}

func timeoutErrorHandler(err error, c echo.Context) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if c.Response().Committed {
		return nil
	}
	return fhir.Respond(c, http.StatusGatewayTimeout, fhir.NewOperationOutcome(
		fhir.IssueSeverityError, fhir.IssueTypeTimeout, "Request processing exceeded the allowed time limit"))
}
