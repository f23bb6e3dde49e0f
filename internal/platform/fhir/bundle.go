package fhir

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/ehr/condition-server/pkg/pagination"
)

// Bundle represents a FHIR Bundle resource. Only searchset bundles are
// produced; entries hold concrete resources so both formats can render them.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

func (b *Bundle) GetResourceType() string { return "Bundle" }

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string        `json:"fullUrl,omitempty"`
	Resource Resource      `json:"resource,omitempty"`
	Search   *BundleSearch `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchBundleParams holds pagination and link information for a search bundle.
type SearchBundleParams struct {
	BaseURL  string
	QueryStr string
	Count    int
	Offset   int
	Total    int
}

// NewSearchBundleWithLinks creates a searchset Bundle with proper pagination links.
// fullURL supplies each entry's fullUrl.
func NewSearchBundleWithLinks(resources []Resource, params SearchBundleParams, fullURL func(Resource) string) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{
			FullURL:  fullURL(r),
			Resource: r,
			Search:   &BundleSearch{Mode: "match"},
		}
	}
	total := params.Total
	return &Bundle{
		ResourceType: "Bundle",
		Meta:         &Meta{LastUpdated: FormatInstant(time.Now())},
		Type:         "searchset",
		Total:        &total,
		Link:         buildPaginationLinks(params),
		Entry:        entries,
	}
}

// buildPaginationLinks creates self, next, and previous links for searchset bundles.
func buildPaginationLinks(params SearchBundleParams) []BundleLink {
	page := pagination.Params{Limit: params.Count, Offset: params.Offset}
	link := func(rel string, offset int) BundleLink {
		return BundleLink{
			Relation: rel,
			URL:      fmt.Sprintf("%s?%s_count=%d&_offset=%d", params.BaseURL, conditionalAmpersand(params.QueryStr), params.Count, offset),
		}
	}

	links := []BundleLink{link("self", params.Offset)}
	if page.HasNext(params.Total) {
		links = append(links, link("next", page.NextOffset()))
	}
	if page.HasPrevious() {
		links = append(links, link("previous", page.PreviousOffset()))
	}
	return links
}

// conditionalAmpersand returns the query string with a trailing & if non-empty.
func conditionalAmpersand(qs string) string {
	if qs == "" {
		return ""
	}
	return qs + "&"
}

type xmlBundle struct {
	XMLName xml.Name
	ID      *Attr            `xml:"id,omitempty"`
	Meta    *Meta            `xml:"meta,omitempty"`
	Type    *Attr            `xml:"type,omitempty"`
	Total   *Attr            `xml:"total,omitempty"`
	Link    []xmlBundleLink  `xml:"link"`
	Entry   []xmlBundleEntry `xml:"entry"`
}

type xmlBundleLink struct {
	Relation *Attr `xml:"relation,omitempty"`
	URL      *Attr `xml:"url,omitempty"`
}

type xmlBundleEntry struct {
	FullURL  *Attr              `xml:"fullUrl,omitempty"`
	Resource *resourceContainer `xml:"resource,omitempty"`
	Search   *xmlBundleSearch   `xml:"search,omitempty"`
}

type xmlBundleSearch struct {
	Mode *Attr `xml:"mode,omitempty"`
}

// resourceContainer wraps a contained resource in its <resource> element;
// the resource itself supplies its own namespaced root.
type resourceContainer struct {
	inner Resource
}

func (rc resourceContainer) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(rc.inner); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

func (b Bundle) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	x := xmlBundle{
		ID:   attr(b.ID),
		Meta: b.Meta,
		Type: attr(b.Type),
	}
	if b.Total != nil {
		x.Total = attr(strconv.Itoa(*b.Total))
	}
	for _, l := range b.Link {
		x.Link = append(x.Link, xmlBundleLink{Relation: attr(l.Relation), URL: attr(l.URL)})
	}
	for _, en := range b.Entry {
		xe := xmlBundleEntry{FullURL: attr(en.FullURL)}
		if en.Resource != nil {
			xe.Resource = &resourceContainer{inner: en.Resource}
		}
		if en.Search != nil {
			xe.Search = &xmlBundleSearch{Mode: attr(en.Search.Mode)}
		}
		x.Entry = append(x.Entry, xe)
	}
	return e.EncodeElement(x, resourceStart("Bundle"))
}
