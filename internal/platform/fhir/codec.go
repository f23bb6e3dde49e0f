package fhir

import (
	"bytes"
	"encoding/xml"
	"fmt"

	json "github.com/goccy/go-json"
)

// Marshal serializes a resource in the given format. XML output carries the
// standard XML declaration.
func Marshal(f Format, v any) ([]byte, error) {
	switch f {
	case FormatXML:
		body, err := xml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal xml: %w", err)
		}
		return append([]byte(xml.Header), body...), nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return body, nil
	}
}

// Unmarshal parses a resource in the given format into v.
func Unmarshal(f Format, data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty %s body", f)
	}
	switch f {
	case FormatXML:
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse xml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	}
	return nil
}
