package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

// BodyLimit caps request bodies at limit, a size such as "1M" or "512K".
// A declared Content-Length over the limit is rejected up front with 413 and
// a too-costly OperationOutcome. Bodies without a usable Content-Length are
// wrapped in http.MaxBytesReader, so handlers see *http.MaxBytesError once
// they read past the limit.
func BodyLimit(limit string) echo.MiddlewareFunc {
	maxBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > maxBytes {
				return PayloadTooLarge(c, maxBytes)
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
			return next(c)
		}
	}
}

// PayloadTooLarge writes the 413 OperationOutcome used by BodyLimit.
func PayloadTooLarge(c echo.Context, limit int64) error {
	return fhir.Respond(c, http.StatusRequestEntityTooLarge,
		fhir.TooCostlyOutcome(fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", limit)))
}

// parseLimit parses a human-readable size string (e.g. "1M", "512K", "10G")
// into bytes. Unparsable input falls back to 1 MB.
func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 1 << 20
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 1 << 20
	}
	return n * multiplier
}
