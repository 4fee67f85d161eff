package search

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fhirstore/gofhir/pkg/fhirpath"
)

// SegmentedReference is a FHIR reference broken into its addressable parts,
// per spec.md §3. Exactly one of (ResourceType+ID) or Url is meaningful for
// a local reference; CanonicalVersion holds the `|version` suffix of a
// canonical URL reference.
type SegmentedReference struct {
	Url              string
	ResourceType     string
	ID               string
	Version          string
	CanonicalVersion string
}

// FHIRCode is the (system, value) pair extracted from a token-typed query value.
type FHIRCode struct {
	System string
	Value  string
}

// ParsedSearchParameter is the fully-parsed, immutable representation of one
// query-string key=value group, per spec.md §3. It carries parallel typed
// value arrays; only the array matching ParamType is populated.
type ParsedSearchParameter struct {
	Name           string
	ModifierLiteral string
	Modifier       Modifier
	ParamType      ParamType

	Prefixes []Prefix
	Values   []string
	// IgnoredValueFlags marks individual comma-separated values that could
	// not be parsed (e.g. a malformed date) so they are skipped, not fatal.
	IgnoredValueFlags []bool

	ValueDecimals    []decimal.Decimal
	ValueDateStarts  []time.Time
	ValueDateEnds    []time.Time
	ValueFhirCodes   []FHIRCode
	ValueReferences  []SegmentedReference
	ValueQuantities  []ParsedQuantity

	SelectExpression  string
	CompiledExpression *fhirpath.Expression

	// ChainedParameters maps the resource type the reference may point to, to
	// the parsed child parameter evaluated against that referent. Populated
	// only when Name contains a `.` chain.
	ChainedParameters map[string]*ParsedSearchParameter
	// ChainTargetTypes lists the resource types the chained reference
	// parameter may point to (its Definition's ChainTargets).
	ChainTargetTypes []string

	// ReverseChainedParameterLink holds a `_has` chain; always IgnoredParameter
	// in this core (spec.md §9).
	ReverseChainedParameterLink *ReverseChainLink

	// CompositeComponents is a flat list of sub-parameters, grouped by
	// CompositeGroupSizes into one group per OR-alternative (one `$`-joined
	// combo of the composite's comma-separated value). A root element
	// satisfies the composite if every child in at least one group matches
	// it (AND within a group, OR across groups).
	CompositeComponents []*ParsedSearchParameter
	CompositeGroupSizes []int

	// IgnoredParameter marks a parameter that could not be applied (unknown
	// name in lax mode, incompatible modifier/type pair, or an unimplemented
	// feature such as _has). It is recorded, not applied, and is not an error.
	IgnoredParameter bool
	IgnoredReason    string
}

// ReverseChainLink records the structurally-parsed `_has:Type:ref:param` form.
// See spec.md §9: parsed but never evaluated in this core.
type ReverseChainLink struct {
	SourceType string
	RefParam   string
	Param      string
}

// ParsedQuantity is a parsed `value|system|code` search value, using the same
// arbitrary-precision decimal.Decimal the FHIRPath type system uses so
// number comparisons never round through float64.
type ParsedQuantity struct {
	Value  decimal.Decimal
	System string
	Code   string
}
