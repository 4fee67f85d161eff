package fhirstore

import (
	"encoding/json"
	"sort"

	"github.com/fhirstore/gofhir/pkg/store/search"
)

// capabilityInteractions is the fixed set of interaction codes every enabled
// type supports in this core, per SPEC_FULL.md §6b: no read-only-conformance
// special case, matching the "current behavior" framing of spec.md §1.
var capabilityInteractions = []string{
	"read", "vread", "update", "patch", "delete", "history-instance",
	"create", "search-type",
}

type capabilitySearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

type capabilityInteraction struct {
	Code string `json:"code"`
}

type capabilityResource struct {
	Type        string                  `json:"type"`
	Interaction []capabilityInteraction `json:"interaction"`
	SearchParam []capabilitySearchParam `json:"searchParam,omitempty"`
}

type capabilityRest struct {
	Mode     string               `json:"mode"`
	Resource []capabilityResource `json:"resource"`
}

type capabilityStatement struct {
	ResourceType string           `json:"resourceType"`
	Status       string           `json:"status"`
	Kind         string           `json:"kind"`
	FhirVersion  string           `json:"fhirVersion"`
	Format       []string         `json:"format"`
	Rest         []capabilityRest `json:"rest"`
}

// GetMetadata returns the tenant's live CapabilityStatement, per spec.md
// §4.5 and SPEC_FULL.md §6b. The result is cached and only rebuilt after a
// SearchParameter mutation invalidates it (spec.md §5's "eventually
// consistent" capability recomputation).
func (s *VersionedStore) GetMetadata() Response {
	s.capMu.Lock()
	if s.capCache != nil {
		cached := s.capCache
		s.capMu.Unlock()
		return Response{StatusCode: 200, ResourceOut: cached}
	}
	s.capMu.Unlock()

	types := s.EnabledTypes()
	sort.Strings(types)

	interactions := make([]capabilityInteraction, len(capabilityInteractions))
	for i, code := range capabilityInteractions {
		interactions[i] = capabilityInteraction{Code: code}
	}

	resources := make([]capabilityResource, 0, len(types))
	for _, t := range types {
		resources = append(resources, capabilityResource{
			Type:        t,
			Interaction: interactions,
			SearchParam: s.searchParamsFor(t),
		})
	}

	stmt := capabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Kind:         "instance",
		FhirVersion:  string(s.Config.FhirVersion),
		Format:       []string{"json", "xml"},
		Rest:         []capabilityRest{{Mode: "server", Resource: resources}},
	}
	data, _ := json.Marshal(stmt)

	s.capMu.Lock()
	s.capCache = data
	s.capMu.Unlock()

	return Response{StatusCode: 200, ResourceOut: data}
}

// searchParamsFor lists a type's registered SearchParameters plus the
// framework-defined common parameters (SPEC_FULL.md §6a), satisfying spec.md
// §3's invariant that the count equals registered-plus-common.
func (s *VersionedStore) searchParamsFor(resourceType string) []capabilitySearchParam {
	names := s.registry.Names(resourceType)
	sort.Strings(names)
	out := make([]capabilitySearchParam, 0, len(names)+len(search.CommonParamNames))
	for _, name := range names {
		def, ok := s.registry.Lookup(resourceType, name)
		if !ok {
			continue
		}
		out = append(out, capabilitySearchParam{Name: name, Type: def.Type.String()})
	}
	for _, common := range search.CommonParamNames {
		out = append(out, capabilitySearchParam{Name: common.Name, Type: common.Type.String(), Documentation: "framework-defined"})
	}
	return out
}
