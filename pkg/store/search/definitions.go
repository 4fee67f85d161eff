// Package search implements FHIR search: parsing a query string into
// structured parameters (parser.go) and evaluating those parameters against
// a stored resource's JSON (evaluator.go). This file holds the shared
// enumerations and the modifier/type compatibility matrix that both halves
// dispatch on.
package search

import "strings"

// ParamType is one of the nine FHIR search parameter types.
type ParamType int

const (
	ParamTypeUnknown ParamType = iota
	ParamTypeDate
	ParamTypeNumber
	ParamTypeQuantity
	ParamTypeReference
	ParamTypeString
	ParamTypeToken
	ParamTypeURI
	ParamTypeComposite
	ParamTypeSpecial
)

func (t ParamType) String() string {
	switch t {
	case ParamTypeDate:
		return "date"
	case ParamTypeNumber:
		return "number"
	case ParamTypeQuantity:
		return "quantity"
	case ParamTypeReference:
		return "reference"
	case ParamTypeString:
		return "string"
	case ParamTypeToken:
		return "token"
	case ParamTypeURI:
		return "uri"
	case ParamTypeComposite:
		return "composite"
	case ParamTypeSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// ParseParamType maps a SearchParameter.type code to a ParamType.
func ParseParamType(code string) ParamType {
	switch code {
	case "date":
		return ParamTypeDate
	case "number":
		return ParamTypeNumber
	case "quantity":
		return ParamTypeQuantity
	case "reference":
		return ParamTypeReference
	case "string":
		return ParamTypeString
	case "token":
		return ParamTypeToken
	case "uri":
		return ParamTypeURI
	case "composite":
		return ParamTypeComposite
	case "special":
		return ParamTypeSpecial
	default:
		return ParamTypeUnknown
	}
}

// Modifier is a search parameter modifier, the optional `:suffix` on a key.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierMissing
	ModifierExact
	ModifierContains
	ModifierText
	ModifierNot
	ModifierAbove
	ModifierBelow
	ModifierIn
	ModifierNotIn
	ModifierOfType
	ModifierIdentifier
	ModifierCodeText
	ModifierTextAdvanced
	// ModifierResourceType represents a modifier literal that names a resource
	// type (e.g. `subject:Patient`), valid only on Reference parameters.
	ModifierResourceType
)

// ParseModifier maps a modifier literal (text after the `:`) to a Modifier.
// An empty literal is ModifierNone. An unrecognized literal that looks like a
// resource type name (starts uppercase) is reported as ModifierResourceType;
// the caller still validates it against the actual type registry.
func ParseModifier(literal string) Modifier {
	switch literal {
	case "":
		return ModifierNone
	case "missing":
		return ModifierMissing
	case "exact":
		return ModifierExact
	case "contains":
		return ModifierContains
	case "text":
		return ModifierText
	case "not":
		return ModifierNot
	case "above":
		return ModifierAbove
	case "below":
		return ModifierBelow
	case "in":
		return ModifierIn
	case "not-in":
		return ModifierNotIn
	case "of-type":
		return ModifierOfType
	case "identifier":
		return ModifierIdentifier
	case "code-text":
		return ModifierCodeText
	case "text-advanced":
		return ModifierTextAdvanced
	default:
		if len(literal) > 0 && literal[0] >= 'A' && literal[0] <= 'Z' {
			return ModifierResourceType
		}
		return ModifierNone
	}
}

// compatibility is the authoritative type x modifier matrix from spec.md §6.
// Date, Number, and Quantity only ever accept `missing`; String, Token, and
// URI each have their own set. Reference has the richest set, including
// per-resource-type modifiers which are checked separately (ModifierResourceType).
var compatibility = map[ParamType]map[Modifier]bool{
	ParamTypeDate:     {ModifierMissing: true},
	ParamTypeNumber:   {ModifierMissing: true},
	ParamTypeQuantity: {ModifierMissing: true},
	ParamTypeReference: {
		ModifierAbove: true, ModifierBelow: true, ModifierCodeText: true,
		ModifierIdentifier: true, ModifierIn: true, ModifierMissing: true,
		ModifierNotIn: true, ModifierText: true, ModifierTextAdvanced: true,
		ModifierResourceType: true,
	},
	ParamTypeString: {
		ModifierContains: true, ModifierExact: true, ModifierMissing: true, ModifierText: true,
	},
	ParamTypeToken: {
		ModifierAbove: true, ModifierBelow: true, ModifierCodeText: true, ModifierIn: true,
		ModifierMissing: true, ModifierNot: true, ModifierNotIn: true, ModifierOfType: true,
		ModifierText: true, ModifierTextAdvanced: true,
	},
	ParamTypeURI: {
		ModifierAbove: true, ModifierBelow: true, ModifierContains: true, ModifierIn: true,
		ModifierMissing: true, ModifierNot: true, ModifierNotIn: true, ModifierOfType: true,
		ModifierText: true, ModifierTextAdvanced: true,
	},
}

// IsCompatible reports whether modifier m is a legal modifier for parameter type t.
// Composite and Special parameters never accept a modifier in this core.
func IsCompatible(t ParamType, m Modifier) bool {
	if m == ModifierNone {
		return true
	}
	set, ok := compatibility[t]
	if !ok {
		return false
	}
	return set[m]
}

// Prefix is a comparator prefix accepted by number, date, and quantity values.
type Prefix string

const (
	PrefixEq Prefix = "eq"
	PrefixNe Prefix = "ne"
	PrefixGt Prefix = "gt"
	PrefixLt Prefix = "lt"
	PrefixGe Prefix = "ge"
	PrefixLe Prefix = "le"
	PrefixSa Prefix = "sa"
	PrefixEb Prefix = "eb"
	PrefixAp Prefix = "ap"
)

var validPrefixes = map[string]Prefix{
	"eq": PrefixEq, "ne": PrefixNe, "gt": PrefixGt, "lt": PrefixLt,
	"ge": PrefixGe, "le": PrefixLe, "sa": PrefixSa, "eb": PrefixEb, "ap": PrefixAp,
}

// SplitPrefix extracts a two-letter prefix from the front of value if the
// parameter type permits prefixes and value begins with a known prefix
// letter pair. Returns the default prefix (eq) and the value unchanged
// otherwise.
func SplitPrefix(t ParamType, value string) (Prefix, string) {
	if t != ParamTypeDate && t != ParamTypeNumber && t != ParamTypeQuantity {
		return PrefixEq, value
	}
	if len(value) < 2 {
		return PrefixEq, value
	}
	candidate := strings.ToLower(value[:2])
	if p, ok := validPrefixes[candidate]; ok {
		rest := value[2:]
		// Guard against swallowing a unit/number that merely starts with two
		// letters resembling a prefix but is not followed by a numeric/sign char
		// (FHIR prefixes are only ever followed directly by the value).
		if rest == "" || !(rest[0] >= '0' && rest[0] <= '9' || rest[0] == '-' || rest[0] == '+') {
			return PrefixEq, value
		}
		return p, rest
	}
	return PrefixEq, value
}

// CommonParamNames lists the framework-defined search parameters registered
// on every resource type (spec.md SPEC_FULL §6a), counted toward the
// CapabilityStatement alongside user-registered SearchParameters.
var CommonParamNames = []struct {
	Name string
	Type ParamType
}{
	{"_id", ParamTypeToken},
	{"_lastUpdated", ParamTypeDate},
	{"_profile", ParamTypeURI},
	{"_security", ParamTypeToken},
	{"_source", ParamTypeURI},
	{"_tag", ParamTypeToken},
	{"_text", ParamTypeSpecial},
	{"_content", ParamTypeSpecial},
	{"_list", ParamTypeSpecial},
}

// IsCommonParam reports whether name is a framework-defined parameter.
func IsCommonParam(name string) (ParamType, bool) {
	for _, p := range CommonParamNames {
		if p.Name == name {
			return p.Type, true
		}
	}
	return ParamTypeUnknown, false
}
