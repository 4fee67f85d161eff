package search

import (
	"context"
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath/eval"
	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchReference implements spec.md §4.3's Reference rule: direct comparison
// of the extracted Reference element against each query value (honoring an
// explicit `{ResourceType}` modifier as a type filter), the `identifier`
// modifier (compare Reference.identifier as a Token instead of following the
// reference), and chained parameters (resolve the reference through
// referent and recursively evaluate the child parameter against it).
func matchReference(evalCtx *eval.Context, el types.Value, p *ParsedSearchParameter, referent Referent) bool {
	o, ok := asObject(el)
	if !ok {
		return false
	}

	if p.Modifier == ModifierIdentifier {
		ident, ok := o.Get("identifier")
		if !ok {
			return false
		}
		identObj, ok := asObject(ident)
		if !ok {
			return false
		}
		return matchCodingObject(identObj, p)
	}

	refStr, hasRef := fieldString(o, "reference")
	actualType, _ := fieldString(o, "type")
	if !hasRef {
		return false
	}
	if actualType == "" {
		actualType = ParseReferenceValue(refStr).ResourceType
	}

	typeFilter := ""
	if p.Modifier == ModifierResourceType {
		typeFilter = p.ModifierLiteral
	}

	matchedAny := false
	var matchedType, matchedID string
	for i, q := range p.ValueReferences {
		if p.IgnoredValueFlags[i] {
			continue
		}
		if ReferenceMatches(refStr, actualType, q, typeFilter) {
			matchedAny = true
			matchedType, matchedID = resolveTarget(refStr, actualType, q, typeFilter)
			break
		}
	}
	if !matchedAny {
		return false
	}
	if len(p.ChainedParameters) == 0 {
		return true
	}
	return evaluateChain(p, referent, matchedType, matchedID)
}

// resolveTarget determines which (resourceType, id) the matched reference
// names, for use resolving a chained parameter.
func resolveTarget(refStr, actualType string, q SegmentedReference, typeFilter string) (string, string) {
	rt := actualType
	if rt == "" {
		rt = q.ResourceType
	}
	if typeFilter != "" {
		rt = typeFilter
	}
	parsed := ParseReferenceValue(refStr)
	id := parsed.ID
	if id == "" {
		id = q.ID
	}
	if id == "" {
		// Fall back to the trailing path segment of a full URL reference.
		if idx := strings.LastIndex(refStr, "/"); idx >= 0 {
			id = refStr[idx+1:]
		}
	}
	return rt, id
}

// evaluateChain resolves the referenced resource and evaluates the chained
// child parameter against it for every candidate target type, per spec.md
// §4.2's chained-parameter semantics.
func evaluateChain(p *ParsedSearchParameter, referent Referent, resourceType, id string) bool {
	if referent == nil || id == "" {
		return false
	}
	if resourceType != "" {
		if child, ok := p.ChainedParameters[resourceType]; ok {
			if json, ok := referent.Resolve(resourceType, id); ok {
				return evaluateParam(context.Background(), json, child, referent)
			}
		}
		return false
	}
	// No known type on the reference itself: try every type the chained
	// parameter was resolved against.
	for targetType, child := range p.ChainedParameters {
		if json, ok := referent.Resolve(targetType, id); ok {
			if evaluateParam(context.Background(), json, child, referent) {
				return true
			}
		}
	}
	return false
}
