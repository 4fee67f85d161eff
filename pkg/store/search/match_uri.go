package search

import (
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchURI implements spec.md §4.3's URI rule: case-sensitive equality after
// urn:oid:/urn:uuid: scheme normalization. `below` matches the query as a
// hierarchical ancestor (the actual value equals the query or extends it
// under a `/` boundary); `above` is the inverse. `not` inverts the base
// comparison.
func matchURI(el types.Value, p *ParsedSearchParameter) bool {
	s, ok := el.(types.String)
	if !ok {
		return false
	}
	actual := NormalizeURN(s.Value())

	matched := false
	for i, raw := range p.Values {
		if p.IgnoredValueFlags[i] {
			continue
		}
		query := NormalizeURN(raw)
		switch p.Modifier {
		case ModifierBelow:
			if actual == query || strings.HasPrefix(actual, query+"/") {
				matched = true
			}
		case ModifierAbove:
			if actual == query || strings.HasPrefix(query, actual+"/") {
				matched = true
			}
		case ModifierContains:
			if strings.Contains(actual, query) {
				matched = true
			}
		default:
			if actual == query {
				matched = true
			}
		}
		if matched {
			break
		}
	}

	if p.Modifier == ModifierNot {
		return !matched
	}
	return matched
}
