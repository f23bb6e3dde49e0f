package fhir

import (
	"encoding/xml"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SearchParam describes a search parameter for use with the CapabilityBuilder.
type SearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

type resourceEntry struct {
	interactions []string
	searchParams []SearchParam
}

// CapabilityBuilder accumulates resource registrations from domain modules and
// builds the CapabilityStatement served at /metadata.
type CapabilityBuilder struct {
	mu        sync.RWMutex
	resources map[string]*resourceEntry

	ServerVersion string
	BaseURL       string
}

// NewCapabilityBuilder creates a new builder. The baseURL is the FHIR server
// base URL (e.g., "http://localhost:8000/fhir"), and version is the server
// software version.
func NewCapabilityBuilder(baseURL, version string) *CapabilityBuilder {
	return &CapabilityBuilder{
		resources:     make(map[string]*resourceEntry),
		ServerVersion: version,
		BaseURL:       baseURL,
	}
}

// AddResource registers a FHIR resource type with the given interactions and
// search parameters. If the resource type was already registered, the new
// interactions and search parameters are merged with the existing ones.
func (b *CapabilityBuilder) AddResource(resourceType string, interactions []string, searchParams []SearchParam) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.resources[resourceType]
	if !ok {
		entry = &resourceEntry{}
		b.resources[resourceType] = entry
	}

	existing := make(map[string]bool, len(entry.interactions))
	for _, i := range entry.interactions {
		existing[i] = true
	}
	for _, i := range interactions {
		if !existing[i] {
			entry.interactions = append(entry.interactions, i)
			existing[i] = true
		}
	}

	existingParams := make(map[string]bool, len(entry.searchParams))
	for _, p := range entry.searchParams {
		existingParams[p.Name] = true
	}
	for _, p := range searchParams {
		if !existingParams[p.Name] {
			entry.searchParams = append(entry.searchParams, p)
			existingParams[p.Name] = true
		}
	}
}

// Build constructs the CapabilityStatement. Resources are sorted
// alphabetically by type.
func (b *CapabilityBuilder) Build() *CapabilityStatement {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.resources))
	for rt := range b.resources {
		types = append(types, rt)
	}
	sort.Strings(types)

	resources := make([]CSResource, 0, len(types))
	for _, rt := range types {
		entry := b.resources[rt]
		res := CSResource{Type: rt}
		for _, i := range entry.interactions {
			res.Interaction = append(res.Interaction, CSInteraction{Code: i})
		}
		for _, p := range entry.searchParams {
			res.SearchParam = append(res.SearchParam, CSSearchParam{Name: p.Name, Type: p.Type, Documentation: p.Documentation})
		}
		resources = append(resources, res)
	}

	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Kind:         "instance",
		Software:     &CSSoftware{Name: "Condition FHIR Server", Version: b.ServerVersion},
		Implementation: &CSImplementation{
			Description: "FHIR R4 Condition service",
			URL:         b.BaseURL,
		},
		FHIRVersion: "4.0.1",
		Format:      []string{"json", "xml"},
		Rest:        []CSRest{{Mode: "server", Resource: resources}},
	}
}

// ResourceCount returns the number of registered resource types.
func (b *CapabilityBuilder) ResourceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.resources)
}

// CapabilityStatement represents the FHIR CapabilityStatement (metadata).
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	Software       *CSSoftware       `json:"software,omitempty"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Rest           []CSRest          `json:"rest"`
}

func (cs *CapabilityStatement) GetResourceType() string { return "CapabilityStatement" }

type CSSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode     string       `json:"mode"`
	Resource []CSResource `json:"resource"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	SearchParam []CSSearchParam `json:"searchParam,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSSearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

type xmlCapabilityStatement struct {
	XMLName  xml.Name
	Status   *Attr `xml:"status,omitempty"`
	Date     *Attr `xml:"date,omitempty"`
	Kind     *Attr `xml:"kind,omitempty"`
	Software *struct {
		Name    *Attr `xml:"name,omitempty"`
		Version *Attr `xml:"version,omitempty"`
	} `xml:"software,omitempty"`
	Implementation *struct {
		Description *Attr `xml:"description,omitempty"`
		URL         *Attr `xml:"url,omitempty"`
	} `xml:"implementation,omitempty"`
	FHIRVersion *Attr     `xml:"fhirVersion,omitempty"`
	Format      []Attr    `xml:"format"`
	Rest        []xmlRest `xml:"rest"`
}

type xmlRest struct {
	Mode     *Attr         `xml:"mode,omitempty"`
	Resource []xmlResource `xml:"resource"`
}

type xmlResource struct {
	Type        *Attr            `xml:"type,omitempty"`
	Interaction []xmlInteraction `xml:"interaction"`
	SearchParam []xmlSearchParam `xml:"searchParam"`
}

type xmlInteraction struct {
	Code *Attr `xml:"code,omitempty"`
}

type xmlSearchParam struct {
	Name          *Attr `xml:"name,omitempty"`
	Type          *Attr `xml:"type,omitempty"`
	Documentation *Attr `xml:"documentation,omitempty"`
}

func (cs CapabilityStatement) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	x := xmlCapabilityStatement{
		Status:      attr(cs.Status),
		Date:        attr(cs.Date),
		Kind:        attr(cs.Kind),
		FHIRVersion: attr(cs.FHIRVersion),
		Format:      attrs(cs.Format),
	}
	if cs.Software != nil {
		x.Software = &struct {
			Name    *Attr `xml:"name,omitempty"`
			Version *Attr `xml:"version,omitempty"`
		}{Name: attr(cs.Software.Name), Version: attr(cs.Software.Version)}
	}
	if cs.Implementation != nil {
		x.Implementation = &struct {
			Description *Attr `xml:"description,omitempty"`
			URL         *Attr `xml:"url,omitempty"`
		}{Description: attr(cs.Implementation.Description), URL: attr(cs.Implementation.URL)}
	}
	for _, r := range cs.Rest {
		xr := xmlRest{Mode: attr(r.Mode)}
		for _, res := range r.Resource {
			xres := xmlResource{Type: attr(res.Type)}
			for _, i := range res.Interaction {
				xres.Interaction = append(xres.Interaction, xmlInteraction{Code: attr(i.Code)})
			}
			for _, p := range res.SearchParam {
				xres.SearchParam = append(xres.SearchParam, xmlSearchParam{
					Name:          attr(p.Name),
					Type:          attr(p.Type),
					Documentation: attr(p.Documentation),
				})
			}
			xr.Resource = append(xr.Resource, xres)
		}
		x.Rest = append(x.Rest, xr)
	}
	return e.EncodeElement(x, resourceStart("CapabilityStatement"))
}

// CapabilityHandler serves the CapabilityStatement.
type CapabilityHandler struct {
	builder *CapabilityBuilder
}

func NewCapabilityHandler(builder *CapabilityBuilder) *CapabilityHandler {
	return &CapabilityHandler{builder: builder}
}

func (h *CapabilityHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.GetMetadata)
}

func (h *CapabilityHandler) GetMetadata(c echo.Context) error {
	return Respond(c, http.StatusOK, h.builder.Build())
}
