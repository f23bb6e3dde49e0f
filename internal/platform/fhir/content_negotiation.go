package fhir

import (
	"bytes"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Format is the wire encoding of a FHIR resource.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

func (f Format) String() string {
	if f == FormatXML {
		return "xml"
	}
	return "json"
}

// Default media types used when the client did not name one explicitly
// (no Accept header, a wildcard, or a _format shorthand such as "json").
const (
	MediaTypeFHIRJSON = "application/fhir+json"
	MediaTypeFHIRXML  = "application/fhir+xml"
)

// mediaTypes maps every accepted media type to its format. Responses echo the
// matched key verbatim as their Content-Type.
var mediaTypes = map[string]Format{
	"application/fhir+json": FormatJSON,
	"application/json+fhir": FormatJSON,
	"application/json":      FormatJSON,
	"application/fhir+xml":  FormatXML,
	"application/xml+fhir":  FormatXML,
	"application/xml":       FormatXML,
	"text/xml":              FormatXML,
}

// formatShorthands are the _format values that name a format, not a media type.
var formatShorthands = map[string]Format{
	"json": FormatJSON,
	"xml":  FormatXML,
}

// DefaultMediaType returns the media type used for a format when the client
// did not request a specific one.
func DefaultMediaType(f Format) string {
	if f == FormatXML {
		return MediaTypeFHIRXML
	}
	return MediaTypeFHIRJSON
}

// normalizeFormat normalises a format string by lowercasing, trimming
// whitespace, dropping media type parameters, and restoring the "+" that
// HTTP query-string decoding may have converted to a space
// (e.g. "application/fhir json" -> "application/fhir+json").
func normalizeFormat(raw string) string {
	f := strings.SplitN(raw, ";", 2)[0]
	f = strings.TrimSpace(strings.ToLower(f))
	f = strings.ReplaceAll(f, "fhir json", "fhir+json")
	f = strings.ReplaceAll(f, "fhir xml", "fhir+xml")
	f = strings.ReplaceAll(f, "json fhir", "json+fhir")
	f = strings.ReplaceAll(f, "xml fhir", "xml+fhir")
	return f
}

// lookupMediaType resolves a single media type or _format value.
func lookupMediaType(raw string) (Format, string, bool) {
	mt := normalizeFormat(raw)
	if f, ok := mediaTypes[mt]; ok {
		return f, mt, true
	}
	if f, ok := formatShorthands[mt]; ok {
		return f, DefaultMediaType(f), true
	}
	return FormatJSON, "", false
}

type acceptRange struct {
	mediaType string
	q         float64
}

// parseAccept splits an Accept header into media ranges ordered by quality,
// keeping header order among equal qualities.
func parseAccept(accept string) []acceptRange {
	var ranges []acceptRange
	for _, part := range strings.Split(accept, ",") {
		fields := strings.Split(part, ";")
		mt := strings.TrimSpace(fields[0])
		if mt == "" {
			continue
		}
		q := 1.0
		for _, p := range fields[1:] {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "q=") {
				if v, err := strconv.ParseFloat(strings.TrimPrefix(p, "q="), 64); err == nil {
					q = v
				}
			}
		}
		ranges = append(ranges, acceptRange{mediaType: mt, q: q})
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].q > ranges[j].q })
	return ranges
}

// Negotiate picks the response format. The _format parameter wins over the
// Accept header; an empty Accept or a wildcard range yields FHIR JSON. ok is
// false when the client asked only for media types this server cannot produce.
func Negotiate(format, accept string) (f Format, mediaType string, ok bool) {
	if strings.TrimSpace(format) != "" {
		return lookupMediaType(format)
	}
	if strings.TrimSpace(accept) == "" {
		return FormatJSON, MediaTypeFHIRJSON, true
	}
	for _, r := range parseAccept(accept) {
		if r.q <= 0 {
			continue
		}
		if f, mt, ok := lookupMediaType(r.mediaType); ok {
			return f, mt, true
		}
		switch normalizeFormat(r.mediaType) {
		case "*/*", "application/*":
			return FormatJSON, MediaTypeFHIRJSON, true
		}
	}
	return FormatJSON, "", false
}

// NegotiateRequest applies Negotiate to an HTTP request.
func NegotiateRequest(r *http.Request) (Format, string, bool) {
	return Negotiate(r.URL.Query().Get("_format"), r.Header.Get(echo.HeaderAccept))
}

// RequestBodyFormat resolves the format of a request body from its
// Content-Type. Without a Content-Type the first non-space byte decides.
func RequestBodyFormat(contentType string, body []byte) (Format, bool) {
	if strings.TrimSpace(contentType) == "" {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '<' {
			return FormatXML, true
		}
		return FormatJSON, true
	}
	f, _, ok := lookupMediaType(contentType)
	return f, ok
}

// ContentNegotiationMiddleware rejects requests whose Accept header or _format
// parameter names no format this server can produce. The rejection is always
// rendered as FHIR JSON since the client's preference cannot be honoured.
func ContentNegotiationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, _, ok := NegotiateRequest(c.Request()); !ok {
				body, err := Marshal(FormatJSON, NotSupportedOutcome(
					"None of the requested formats are supported. Use application/fhir+json or application/fhir+xml."))
				if err != nil {
					return err
				}
				return c.Blob(http.StatusNotAcceptable, MediaTypeFHIRJSON, body)
			}
			return next(c)
		}
	}
}
