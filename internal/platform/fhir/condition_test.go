package fhir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCondition() *Condition {
	return &Condition{
		ResourceType: "Condition",
		ID:           "86sgf-1f7d-4394-a316-0a458edf28c4",
		Meta:         &Meta{VersionID: "1", LastUpdated: "2024-03-01T10:00:00Z"},
		ClinicalStatus: &CodeableConcept{Coding: []Coding{{
			System: ConditionClinicalStatusSystem,
			Code:   "active",
		}}},
		Code: &CodeableConcept{Coding: []Coding{{
			System:  "https://cielterminology.org",
			Code:    "116128AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			Display: "Malaria",
		}}},
		Subject:       &Reference{Reference: "Patient/da7f524f-27ce-4bb2-86d6-6d1d05312bd5"},
		OnsetDateTime: "2008-07-01T00:00:00Z",
	}
}

func TestCondition_JSONRoundTrip(t *testing.T) {
	in := sampleCondition()

	body, err := Marshal(FormatJSON, in)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"resourceType":"Condition"`)
	assert.Contains(t, string(body), `"onsetDateTime":"2008-07-01T00:00:00Z"`)

	var out Condition
	require.NoError(t, Unmarshal(FormatJSON, body, &out))
	assert.Equal(t, *in, out)
}

func TestCondition_XMLRoundTrip(t *testing.T) {
	in := sampleCondition()

	body, err := Marshal(FormatXML, in)
	require.NoError(t, err)
	s := string(body)
	assert.True(t, strings.HasPrefix(s, "<?xml"))
	assert.Contains(t, s, `<Condition xmlns="http://hl7.org/fhir">`)
	assert.Contains(t, s, `<id value="86sgf-1f7d-4394-a316-0a458edf28c4"></id>`)
	assert.Contains(t, s, `<reference value="Patient/da7f524f-27ce-4bb2-86d6-6d1d05312bd5"></reference>`)
	assert.Contains(t, s, `<onsetDateTime value="2008-07-01T00:00:00Z"></onsetDateTime>`)

	var out Condition
	require.NoError(t, Unmarshal(FormatXML, body, &out))
	assert.Equal(t, *in, out)
}

func TestCondition_XMLOmitsAbsentElements(t *testing.T) {
	in := &Condition{
		ResourceType: "Condition",
		Subject:      &Reference{Reference: "Patient/p1"},
	}
	body, err := Marshal(FormatXML, in)
	require.NoError(t, err)
	s := string(body)
	assert.NotContains(t, s, "<clinicalStatus")
	assert.NotContains(t, s, "<onsetDateTime")
	assert.NotContains(t, s, "<id")
}

func TestCondition_XMLWithoutNamespace(t *testing.T) {
	doc := `<Condition><subject><reference value="Patient/p1"/></subject></Condition>`
	var out Condition
	require.NoError(t, Unmarshal(FormatXML, []byte(doc), &out))
	assert.Equal(t, "Condition", out.ResourceType)
	require.NotNil(t, out.Subject)
	assert.Equal(t, "Patient/p1", out.Subject.Reference)
}

func TestCondition_XMLWrongRoot(t *testing.T) {
	doc := `<Patient xmlns="http://hl7.org/fhir"><id value="x"/></Patient>`
	var out Condition
	err := Unmarshal(FormatXML, []byte(doc), &out)
	assert.Error(t, err)
}

func TestUnmarshal_EmptyBody(t *testing.T) {
	var out Condition
	assert.Error(t, Unmarshal(FormatJSON, []byte("   "), &out))
	assert.Error(t, Unmarshal(FormatXML, nil, &out))
}

func TestUnmarshal_MalformedJSON(t *testing.T) {
	var out Condition
	err := Unmarshal(FormatJSON, []byte(`{"resourceType":`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse json")
}
