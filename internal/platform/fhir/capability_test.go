package fhir

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

func newConditionCapabilities() *CapabilityBuilder {
	b := NewCapabilityBuilder("http://localhost:8000/fhir", "0.1.0")
	b.AddResource("Condition", []string{"read", "create", "search-type"}, []SearchParam{
		{Name: "subject", Type: "reference"},
		{Name: "code", Type: "token"},
	})
	return b
}

func TestCapabilityBuilder_MergesRegistrations(t *testing.T) {
	b := newConditionCapabilities()
	b.AddResource("Condition", []string{"read", "search-type"}, []SearchParam{
		{Name: "code", Type: "token"},
		{Name: "clinical-status", Type: "token"},
	})

	if b.ResourceCount() != 1 {
		t.Fatalf("expected 1 resource, got %d", b.ResourceCount())
	}
	cs := b.Build()
	res := cs.Rest[0].Resource[0]
	if len(res.Interaction) != 3 {
		t.Errorf("expected 3 interactions, got %d", len(res.Interaction))
	}
	if len(res.SearchParam) != 3 {
		t.Errorf("expected 3 search params, got %d", len(res.SearchParam))
	}
}

func TestCapabilityBuilder_SortsResources(t *testing.T) {
	b := newConditionCapabilities()
	b.AddResource("AllergyIntolerance", []string{"read"}, nil)
	cs := b.Build()
	if cs.Rest[0].Resource[0].Type != "AllergyIntolerance" || cs.Rest[0].Resource[1].Type != "Condition" {
		t.Errorf("expected alphabetical resources, got %+v", cs.Rest[0].Resource)
	}
}

func TestCapabilityHandler_JSON(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/metadata", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewCapabilityHandler(newConditionCapabilities())
	if err := h.GetMetadata(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cs CapabilityStatement
	if err := json.Unmarshal(rec.Body.Bytes(), &cs); err != nil {
		t.Fatal(err)
	}
	if cs.ResourceType != "CapabilityStatement" || cs.FHIRVersion != "4.0.1" {
		t.Errorf("unexpected statement %+v", cs)
	}
	if len(cs.Format) != 2 {
		t.Errorf("expected json and xml formats, got %v", cs.Format)
	}
}

func TestCapabilityHandler_XML(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/metadata", nil)
	req.Header.Set("Accept", "application/fhir+xml")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewCapabilityHandler(newConditionCapabilities())
	if err := h.GetMetadata(c); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != MediaTypeFHIRXML {
		t.Errorf("expected %s, got %s", MediaTypeFHIRXML, ct)
	}
	s := rec.Body.String()
	for _, want := range []string{
		`<CapabilityStatement xmlns="http://hl7.org/fhir">`,
		`<type value="Condition"></type>`,
		`<code value="search-type"></code>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}
