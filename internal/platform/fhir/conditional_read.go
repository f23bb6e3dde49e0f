package fhir

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// FormatETag creates a weak ETag from a version ID.
func FormatETag(versionID int) string {
	return fmt.Sprintf(`W/"%d"`, versionID)
}

// ParseETag extracts the version from a weak or strong ETag.
func ParseETag(etag string) (int, error) {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)

	v, err := strconv.Atoi(etag)
	if err != nil {
		return 0, fmt.Errorf("ETag must contain a numeric version: %s", etag)
	}
	return v, nil
}

// NotModified reports whether a read can be answered with 304. If-None-Match
// takes precedence over If-Modified-Since (RFC 7232 section 6); a list of
// ETags or "*" is accepted. Unparsable headers never match.
func NotModified(c echo.Context, versionID int, lastModified time.Time) bool {
	req := c.Request()
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}

	if inm := req.Header.Get("If-None-Match"); inm != "" {
		for _, tag := range strings.Split(inm, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" {
				return true
			}
			if v, err := ParseETag(tag); err == nil && v == versionID {
				return true
			}
		}
		return false
	}

	if ims := req.Header.Get("If-Modified-Since"); ims != "" && !lastModified.IsZero() {
		since, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		// HTTP dates have second precision.
		return !lastModified.Truncate(time.Second).After(since)
	}
	return false
}
