package fhir

import (
	"encoding/xml"
	"fmt"
)

// ConditionClinicalStatusSystem is the only code system accepted for
// Condition.clinicalStatus.
const ConditionClinicalStatusSystem = "http://terminology.hl7.org/CodeSystem/condition-clinical"

// Condition is the wire representation of a FHIR R4 Condition.
type Condition struct {
	ResourceType   string           `json:"resourceType" validate:"eq=Condition"`
	ID             string           `json:"id,omitempty"`
	Meta           *Meta            `json:"meta,omitempty"`
	ClinicalStatus *CodeableConcept `json:"clinicalStatus,omitempty"`
	Code           *CodeableConcept `json:"code,omitempty"`
	Subject        *Reference       `json:"subject,omitempty" validate:"required"`
	OnsetDateTime  string           `json:"onsetDateTime,omitempty"`
}

func (c *Condition) GetResourceType() string { return "Condition" }

type xmlCondition struct {
	XMLName        xml.Name
	ID             *Attr            `xml:"id,omitempty"`
	Meta           *Meta            `xml:"meta,omitempty"`
	ClinicalStatus *CodeableConcept `xml:"clinicalStatus,omitempty"`
	Code           *CodeableConcept `xml:"code,omitempty"`
	Subject        *Reference       `xml:"subject,omitempty"`
	OnsetDateTime  *Attr            `xml:"onsetDateTime,omitempty"`
}

func (c Condition) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return e.EncodeElement(xmlCondition{
		ID:             attr(c.ID),
		Meta:           c.Meta,
		ClinicalStatus: c.ClinicalStatus,
		Code:           c.Code,
		Subject:        c.Subject,
		OnsetDateTime:  attr(c.OnsetDateTime),
	}, resourceStart("Condition"))
}

func (c *Condition) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlCondition
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	if x.XMLName.Local != "Condition" {
		return fmt.Errorf("expected Condition element, got %s", x.XMLName.Local)
	}
	*c = Condition{
		ResourceType:   "Condition",
		ID:             x.ID.String(),
		Meta:           x.Meta,
		ClinicalStatus: x.ClinicalStatus,
		Code:           x.Code,
		Subject:        x.Subject,
		OnsetDateTime:  x.OnsetDateTime.String(),
	}
	return nil
}
