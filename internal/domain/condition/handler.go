package condition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/condition-server/internal/platform/fhir"
	"github.com/ehr/condition-server/pkg/pagination"
)

const resourceType = "Condition"

type Handler struct {
	svc      *Service
	basePath string
	logger   zerolog.Logger
}

// NewHandler creates the Condition provider. basePath is the FHIR mount
// point used in Location headers and bundle links (e.g. "/fhir").
func NewHandler(svc *Service, basePath string, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		basePath: strings.TrimRight(basePath, "/"),
		logger:   logger.With().Str("resource", resourceType).Logger(),
	}
}

func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Condition", h.SearchConditionsFHIR)
	fhirGroup.POST("/Condition/_search", h.SearchConditionsFHIR)
	fhirGroup.GET("/Condition/:id", h.GetConditionFHIR)
	fhirGroup.POST("/Condition", h.CreateConditionFHIR)
}

// RegisterCapabilities advertises the Condition interactions in /metadata.
func (h *Handler) RegisterCapabilities(b *fhir.CapabilityBuilder) {
	b.AddResource(resourceType, []string{"read", "create", "search-type"}, []fhir.SearchParam{
		{Name: "_id", Type: "token"},
		{Name: "subject", Type: "reference", Documentation: "Patient/{id} or a bare patient id"},
		{Name: "patient", Type: "reference"},
		{Name: "clinical-status", Type: "token"},
		{Name: "code", Type: "token", Documentation: "system|code, system|, |code or code"},
	})
}

func (h *Handler) GetConditionFHIR(c echo.Context) error {
	id := c.Param("id")
	cond, err := h.svc.GetCondition(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err, id)
	}
	fhir.SetVersionHeaders(c, 1, cond.UpdatedAt.UTC().Format(http.TimeFormat))
	if fhir.NotModified(c, 1, cond.UpdatedAt) {
		return c.NoContent(http.StatusNotModified)
	}
	return fhir.Respond(c, http.StatusOK, cond.ToFHIR(h.svc.Location()))
}

func (h *Handler) CreateConditionFHIR(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fhir.Respond(c, http.StatusRequestEntityTooLarge,
				fhir.TooCostlyOutcome(fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", tooLarge.Limit)))
		}
		return fhir.Respond(c, http.StatusBadRequest, fhir.StructureOutcome("could not read request body"))
	}
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	format, ok := fhir.RequestBodyFormat(contentType, body)
	if !ok {
		return fhir.Respond(c, http.StatusUnsupportedMediaType,
			fhir.NotSupportedOutcome("Content-Type "+contentType+" is not supported; send application/fhir+json or application/fhir+xml"))
	}

	var res fhir.Condition
	if err := fhir.Unmarshal(format, body, &res); err != nil {
		return fhir.Respond(c, http.StatusBadRequest, fhir.StructureOutcome(err.Error()))
	}

	cond, err := h.svc.CreateFromFHIR(c.Request().Context(), &res)
	if err != nil {
		return h.respondError(c, err, res.ID)
	}

	location := h.basePath + "/Condition/" + cond.ID
	c.Response().Header().Set(echo.HeaderLocation, location)
	fhir.SetVersionHeaders(c, 1, cond.UpdatedAt.UTC().Format(http.TimeFormat))

	switch fhir.ParsePreferReturn(c.Request().Header.Get("Prefer")) {
	case fhir.ReturnMinimal:
		return c.NoContent(http.StatusCreated)
	case fhir.ReturnOperationOutcome:
		return fhir.Respond(c, http.StatusCreated, fhir.NewOperationOutcome(
			fhir.IssueSeverityInformation, fhir.IssueTypeInformational, "Created "+location))
	default:
		return fhir.Respond(c, http.StatusCreated, cond.ToFHIR(h.svc.Location()))
	}
}

func (h *Handler) SearchConditionsFHIR(c echo.Context) error {
	pg := pagination.FromContext(c)
	raw := fhir.ExtractSearchParams(c)
	params, err := ParseSearchParams(raw)
	if err != nil {
		return h.respondError(c, err, "")
	}

	items, total, err := h.svc.SearchConditions(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return h.respondError(c, err, "")
	}

	loc := h.svc.Location()
	resources := make([]fhir.Resource, len(items))
	for i, item := range items {
		resources[i] = item.ToFHIR(loc)
	}

	query := url.Values{}
	for k, v := range raw {
		query.Set(k, v)
	}
	base := c.Scheme() + "://" + c.Request().Host + h.basePath + "/Condition"
	bundle := fhir.NewSearchBundleWithLinks(resources, fhir.SearchBundleParams{
		BaseURL:  base,
		QueryStr: query.Encode(),
		Count:    pg.Limit,
		Offset:   pg.Offset,
		Total:    total,
	}, func(r fhir.Resource) string {
		return base + "/" + r.(*fhir.Condition).ID
	})
	return fhir.Respond(c, http.StatusOK, bundle)
}

// respondError renders err as an OperationOutcome with the matching status.
// An expired request deadline is returned unrendered for the timeout
// middleware to answer.
func (h *Handler) respondError(c echo.Context, err error, id string) error {
	var ve *fhir.ValidationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrNotFound):
		return fhir.Respond(c, http.StatusNotFound, fhir.NotFoundOutcome(resourceType, id))
	case errors.Is(err, ErrConflict):
		return fhir.Respond(c, http.StatusConflict, fhir.DuplicateOutcome(resourceType, id))
	case errors.As(err, &ve):
		status := http.StatusUnprocessableEntity
		if ve.Structural {
			status = http.StatusBadRequest
		}
		return fhir.Respond(c, status, ve.Outcome())
	default:
		rid, _ := c.Get("request_id").(string)
		h.logger.Error().Err(err).
			Str("request_id", rid).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("condition request failed")
		return fhir.Respond(c, http.StatusInternalServerError, fhir.InternalErrorOutcome("internal server error"))
	}
}
