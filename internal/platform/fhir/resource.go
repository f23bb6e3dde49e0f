package fhir

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Namespace is the XML namespace of every FHIR resource element.
const Namespace = "http://hl7.org/fhir"

// Resource is implemented by every top-level wire resource.
type Resource interface {
	GetResourceType() string
}

// Attr is FHIR's <element value="..."/> XML primitive.
type Attr struct {
	Value string `xml:"value,attr"`
}

func attr(s string) *Attr {
	if s == "" {
		return nil
	}
	return &Attr{Value: s}
}

func (a *Attr) String() string {
	if a == nil {
		return ""
	}
	return a.Value
}

func attrs(values []string) []Attr {
	if len(values) == 0 {
		return nil
	}
	out := make([]Attr, len(values))
	for i, v := range values {
		out[i] = Attr{Value: v}
	}
	return out
}

func attrValues(in []Attr) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.Value
	}
	return out
}

// resourceStart returns the namespaced root element for a resource.
func resourceStart(resourceType string) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Space: Namespace, Local: resourceType}}
}

type Meta struct {
	VersionID   string `json:"versionId,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type xmlMeta struct {
	VersionID   *Attr `xml:"versionId,omitempty"`
	LastUpdated *Attr `xml:"lastUpdated,omitempty"`
}

func (m Meta) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(xmlMeta{VersionID: attr(m.VersionID), LastUpdated: attr(m.LastUpdated)}, start)
}

func (m *Meta) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlMeta
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	*m = Meta{VersionID: x.VersionID.String(), LastUpdated: x.LastUpdated.String()}
	return nil
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty" validate:"required"`
	Display string `json:"display,omitempty"`
}

type xmlCoding struct {
	System  *Attr `xml:"system,omitempty"`
	Code    *Attr `xml:"code,omitempty"`
	Display *Attr `xml:"display,omitempty"`
}

func (c Coding) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(xmlCoding{
		System:  attr(c.System),
		Code:    attr(c.Code),
		Display: attr(c.Display),
	}, start)
}

func (c *Coding) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlCoding
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	*c = Coding{System: x.System.String(), Code: x.Code.String(), Display: x.Display.String()}
	return nil
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty" validate:"dive"`
	Text   string   `json:"text,omitempty"`
}

type xmlCodeableConcept struct {
	Coding []Coding `xml:"coding"`
	Text   *Attr    `xml:"text,omitempty"`
}

func (cc CodeableConcept) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(xmlCodeableConcept{Coding: cc.Coding, Text: attr(cc.Text)}, start)
}

func (cc *CodeableConcept) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlCodeableConcept
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	*cc = CodeableConcept{Coding: x.Coding, Text: x.Text.String()}
	return nil
}

// FirstCoding returns the first coding, or the zero Coding when there is none.
func (cc *CodeableConcept) FirstCoding() Coding {
	if cc == nil || len(cc.Coding) == 0 {
		return Coding{}
	}
	return cc.Coding[0]
}

type Reference struct {
	Reference string `json:"reference,omitempty" validate:"required"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type xmlReference struct {
	Reference *Attr `xml:"reference,omitempty"`
	Type      *Attr `xml:"type,omitempty"`
	Display   *Attr `xml:"display,omitempty"`
}

func (r Reference) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(xmlReference{
		Reference: attr(r.Reference),
		Type:      attr(r.Type),
		Display:   attr(r.Display),
	}, start)
}

func (r *Reference) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlReference
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	*r = Reference{Reference: x.Reference.String(), Type: x.Type.String(), Display: x.Display.String()}
	return nil
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits a relative or absolute literal reference into its
// resource type and id. A trailing _history segment is dropped.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(strings.TrimRight(ref, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	resourceType, id = parts[len(parts)-2], parts[len(parts)-1]
	if resourceType == "" || id == "" {
		return "", "", false
	}
	return resourceType, id, true
}
