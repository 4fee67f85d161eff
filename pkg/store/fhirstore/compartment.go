package fhirstore

import (
	"context"

	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// CompartmentSearch implements spec.md §4.1's `/{type}/{id}/{compartment}`
// pattern: search compartment for instances that reference {type}/{id}
// through any of its registered Reference-typed search parameters. This
// core carries no CompartmentDefinition resource (out of scope per spec.md
// §1), so compartment membership is derived structurally rather than from a
// declared membership list — see DESIGN.md.
func (s *VersionedStore) CompartmentSearch(ctx context.Context, resourceType, id, compartment, queryString string) Response {
	return s.compartmentScopedSearch(ctx, resourceType, id, compartment, queryString)
}

// CompartmentTypeSearch implements the four-segment
// `/{type}/{id}/{compartment}/{type2}` pattern: compartment membership is
// still evaluated against type2 (the actually-searched type); the
// intervening compartment segment (e.g. "everything") carries no additional
// filtering in this core.
func (s *VersionedStore) CompartmentTypeSearch(ctx context.Context, resourceType, id, compartmentType, queryString string) Response {
	return s.compartmentScopedSearch(ctx, resourceType, id, compartmentType, queryString)
}

func (s *VersionedStore) compartmentScopedSearch(ctx context.Context, resourceType, id, targetType, queryString string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(targetType)
	if err != nil {
		return errorResponse(err)
	}
	parsed, err := search.Parse(targetType, queryString, s.registry)
	if err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing search query"))
	}

	s.txMu.RLock()
	defer s.txMu.RUnlock()

	var matches []*resource.Instance
	for _, inst := range st.Values() {
		if err := checkCancelled(ctx); err != nil {
			return errorResponse(err)
		}
		if !s.referencesCompartment(inst, resourceType, id, targetType) {
			continue
		}
		if !search.Evaluate(ctx, inst.JSON, parsed.Params, s).Matched {
			continue
		}
		matches = append(matches, inst)
	}
	applySort(matches, parsed.Sort)

	total := len(matches)
	offset, count := s.pageBounds(parsed)
	page := paginate(matches, offset, count)
	includes := s.resolveIncludes(targetType, page, parsed.Includes)

	return Response{StatusCode: 200, ResourceOut: buildSearchsetBundle(total, page, includes, parsed.Summary)}
}

// referencesCompartment reports whether inst (of type targetType) references
// resourceType/id through any of targetType's registered reference
// parameters.
func (s *VersionedStore) referencesCompartment(inst *resource.Instance, resourceType, id, targetType string) bool {
	want := search.SegmentedReference{ResourceType: resourceType, ID: id}
	for _, name := range s.registry.Names(targetType) {
		def, ok := s.registry.Lookup(targetType, name)
		if !ok || def.Type != search.ParamTypeReference {
			continue
		}
		for _, ref := range search.ExtractReferenceStrings(inst.JSON, def) {
			if search.ReferenceMatches(ref, "", want, "") {
				return true
			}
		}
	}
	return false
}
