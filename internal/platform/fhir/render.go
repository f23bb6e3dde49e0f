package fhir

import (
	"github.com/labstack/echo/v4"
)

// Respond writes v with the given status in the format the request negotiated.
// The Content-Type header is exactly the media type the client asked for.
func Respond(c echo.Context, status int, v any) error {
	f, mediaType, ok := NegotiateRequest(c.Request())
	if !ok {
		f, mediaType = FormatJSON, MediaTypeFHIRJSON
	}
	body, err := Marshal(f, v)
	if err != nil {
		return err
	}
	return c.Blob(status, mediaType, body)
}

// SetVersionHeaders sets the ETag and Last-Modified headers for a resource
// version. lastModified must already be in HTTP date format.
func SetVersionHeaders(c echo.Context, versionID int, lastModified string) {
	c.Response().Header().Set("ETag", FormatETag(versionID))
	if lastModified != "" {
		c.Response().Header().Set("Last-Modified", lastModified)
	}
}
