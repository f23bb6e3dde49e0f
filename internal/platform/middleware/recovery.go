package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

// Recovery turns a handler panic into a 500 OperationOutcome. The panic value
// and stack go to the log only. http.ErrAbortHandler is re-raised so net/http
// can abort the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				req := c.Request()
				logger.Error().
					Str("request_id", GetRequestID(c)).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if c.Response().Committed {
					err = echo.NewHTTPError(http.StatusInternalServerError)
					return
				}
				err = fhir.Respond(c, http.StatusInternalServerError, fhir.InternalErrorOutcome("internal server error"))
			}()
			return next(c)
		}
	}
}
