package search

import (
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// humanNameFields and addressFields list, for HumanName and Address, the text-bearing
// sub-fields spec.md §4.3 requires testing individually ("succeed if any
// matches").
var humanNameFields = []string{"family", "given", "text"}
var addressFields = []string{"use", "type", "line", "city", "district", "state", "postalCode", "country", "text"}

// matchString implements spec.md §4.3's String rule. Default is
// case-insensitive starts-with; `contains` is case-insensitive substring;
// `exact` is case-sensitive equality. HumanName and Address elements are
// tested field-by-field.
func matchString(el types.Value, p *ParsedSearchParameter) bool {
	for _, candidate := range stringCandidates(el) {
		for i, v := range p.Values {
			if p.IgnoredValueFlags[i] {
				continue
			}
			if stringMatches(p.Modifier, candidate, v) {
				return true
			}
		}
	}
	return false
}

func stringMatches(m Modifier, candidate, query string) bool {
	switch m {
	case ModifierExact:
		return candidate == query
	case ModifierContains:
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
	default:
		return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(query))
	}
}

// stringCandidates flattens an element into the set of raw strings spec.md
// §4.3 wants tested: the element itself if it is a plain string, or every
// text-bearing sub-field if it is a HumanName or Address.
func stringCandidates(el types.Value) []string {
	switch v := el.(type) {
	case types.String:
		return []string{v.Value()}
	case *types.ObjectValue:
		switch strings.ToLower(v.Type()) {
		case "humanname":
			return objectFieldStrings(v, humanNameFields)
		case "address":
			return objectFieldStrings(v, addressFields)
		default:
			return objectFieldStrings(v, []string{"text"})
		}
	default:
		return []string{el.String()}
	}
}

// objectFieldStrings collects every string found at the named fields via
// GetCollection, which uniformly handles both scalar fields (e.g. "text")
// and array fields (e.g. "given", "line").
func objectFieldStrings(o *types.ObjectValue, fields []string) []string {
	var out []string
	for _, f := range fields {
		for _, v := range o.GetCollection(f) {
			if s, ok := v.(types.String); ok {
				out = append(out, s.Value())
			}
		}
	}
	return out
}
