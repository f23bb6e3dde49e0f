package fhir

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler renders errors that reach echo for paths under basePath
// as OperationOutcomes: unrouted paths, unsupported methods and handler
// errors nobody rendered. Other paths go to fallback.
func HTTPErrorHandler(basePath string, fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	prefix := strings.TrimRight(basePath, "/")
	return func(err error, c echo.Context) {
		req := c.Request()
		if c.Response().Committed || !underPrefix(req.URL.Path, prefix) {
			fallback(err, c)
			return
		}

		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}

		if req.Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = Respond(c, status, outcomeForStatus(status, req.Method, req.URL.Path))
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Internal details never reach the client; the request logger has them.
func outcomeForStatus(status int, method, path string) *OperationOutcome {
	switch status {
	case http.StatusNotFound:
		return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, fmt.Sprintf("No handler for %s %s", method, path))
	case http.StatusMethodNotAllowed:
		return NotSupportedOutcome(fmt.Sprintf("Method %s is not supported for %s", method, path))
	case http.StatusNotAcceptable, http.StatusUnsupportedMediaType:
		return NotSupportedOutcome(http.StatusText(status))
	case http.StatusRequestEntityTooLarge:
		return TooCostlyOutcome(http.StatusText(status))
	case http.StatusGatewayTimeout:
		return NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, http.StatusText(status))
	}
	if status >= 500 {
		return InternalErrorOutcome("internal server error")
	}
	return ErrorOutcome(http.StatusText(status))
}
