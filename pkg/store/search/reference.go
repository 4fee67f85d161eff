package search

import "strings"

// ParseReferenceValue splits a search query reference value into its
// addressable pieces, per spec.md §4.2 item (4): `ResourceType/Id`, bare
// `Id`, full URL, `urn:oid:`, `urn:uuid:`, or `url|version` canonical.
func ParseReferenceValue(raw string) SegmentedReference {
	if system, version, ok := strings.Cut(raw, "|"); ok {
		return SegmentedReference{Url: system, CanonicalVersion: version}
	}
	if strings.HasPrefix(raw, "urn:oid:") || strings.HasPrefix(raw, "urn:uuid:") {
		return SegmentedReference{Url: raw}
	}
	if strings.Contains(raw, "://") {
		return SegmentedReference{Url: raw}
	}
	if rtype, id, ok := strings.Cut(raw, "/"); ok && rtype != "" {
		return SegmentedReference{ResourceType: rtype, ID: id}
	}
	return SegmentedReference{ID: raw}
}

// NormalizeURN lower-cases the urn:oid:/urn:uuid: scheme prefix so two
// differently-cased spellings of the same URN compare equal, per spec.md
// §4.3's URI rule.
func NormalizeURN(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "urn:oid:") || strings.HasPrefix(lower, "urn:uuid:") {
		idx := strings.Index(raw, ":")
		idx2 := strings.Index(raw[idx+1:], ":")
		schemeEnd := idx + 1 + idx2 + 1
		return lower[:schemeEnd] + raw[schemeEnd:]
	}
	return raw
}

// ReferenceMatches implements spec.md §4.3's Reference comparison: full-URL
// equality, or a bare-id suffix match (endsWith "/"+id) when the query value
// carries no type prefix. typeFilter, if non-empty, additionally requires
// the referent's resource type to equal it (the `{ResourceType}` modifier).
func ReferenceMatches(actual, actualType string, query SegmentedReference, typeFilter string) bool {
	if typeFilter != "" && !strings.EqualFold(actualType, typeFilter) {
		return false
	}
	actualNorm := NormalizeURN(actual)
	if query.Url != "" {
		queryNorm := NormalizeURN(query.Url)
		if actualNorm == queryNorm {
			return true
		}
		// Canonical with version: `url|version` matches `url` exactly, or
		// `url|version` if the referent encodes its own version the same way.
		if query.CanonicalVersion != "" {
			return actualNorm == queryNorm+"|"+query.CanonicalVersion || actualNorm == queryNorm
		}
		return false
	}
	if query.ResourceType != "" {
		want := query.ResourceType + "/" + query.ID
		return actualNorm == want || strings.HasSuffix(actualNorm, "/"+want)
	}
	// Bare id: match by suffix "/"+id, or exact equality for a reference that
	// is itself a bare id (rare, but some resources store unqualified ids).
	return actualNorm == query.ID || strings.HasSuffix(actualNorm, "/"+query.ID)
}
