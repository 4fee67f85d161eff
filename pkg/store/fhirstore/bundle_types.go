package fhirstore

import "encoding/json"

// bundleEntrySearch, bundleRequest, bundleResponse, bundleEntry, and bundle
// are the minimal Bundle wire shape this store assembles directly via
// encoding/json (searchset results, batch/transaction responses): no
// generated FHIR struct ships in this tree to build a Bundle from (see
// DESIGN.md), so the store marshals its own subset of the resource instead
// of depending on pkg/fhir's unfinished ResourceFactory.BuildSearchBundle.
type bundleEntrySearch struct {
	Mode string `json:"mode"`
}

type bundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type bundleResponse struct {
	Status       string `json:"status"`
	Location     string `json:"location,omitempty"`
	Etag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	Outcome      json.RawMessage `json:"outcome,omitempty"`
}

type bundleEntry struct {
	FullURL  string             `json:"fullUrl,omitempty"`
	Resource json.RawMessage    `json:"resource,omitempty"`
	Search   *bundleEntrySearch `json:"search,omitempty"`
	Request  *bundleRequest     `json:"request,omitempty"`
	Response *bundleResponse    `json:"response,omitempty"`
}

type bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []bundleEntry `json:"entry,omitempty"`
}

func intPtr(n int) *int { return &n }
