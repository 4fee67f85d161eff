package search

import (
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchToken implements spec.md §4.3's Token rule across the element types
// FHIR token parameters may extract: Coding, CodeableConcept, Identifier,
// ContactPoint, boolean, and plain string/id/code. `not` inverts the result
// and counts a missing value as a match.
func matchToken(el types.Value, p *ParsedSearchParameter) bool {
	matched := matchTokenPositive(el, p)
	if p.Modifier == ModifierNot {
		return !matched
	}
	return matched
}

func matchTokenPositive(el types.Value, p *ParsedSearchParameter) bool {
	switch v := el.(type) {
	case types.Boolean:
		for _, raw := range p.Values {
			if b, err := parseBoolLiteral(raw); err == nil && b == v.Bool() {
				return true
			}
		}
		return false
	case *types.ObjectValue:
		switch strings.ToLower(v.Type()) {
		case "codeableconcept":
			for _, coding := range v.GetCollection("coding") {
				if co, ok := asObject(coding); ok && matchCodingObject(co, p) {
					return true
				}
			}
			return false
		case "coding", "identifier":
			return matchCodingObject(v, p)
		case "contactpoint":
			system, _ := fieldString(v, "system")
			value, _ := fieldString(v, "value")
			return matchSystemCode(system, value, p)
		default:
			// Treat any other object carrying system/value or system/code as token-like.
			system, _ := fieldString(v, "system")
			value, hasValue := fieldString(v, "value")
			if !hasValue {
				value, _ = fieldString(v, "code")
			}
			return matchSystemCode(system, value, p)
		}
	case types.String:
		for _, raw := range p.Values {
			if v.Value() == raw {
				return true
			}
		}
		return false
	default:
		lit := el.String()
		for _, raw := range p.Values {
			if lit == raw {
				return true
			}
		}
		return false
	}
}

func matchCodingObject(o *types.ObjectValue, p *ParsedSearchParameter) bool {
	system, _ := fieldString(o, "system")
	code, hasCode := fieldString(o, "code")
	if !hasCode {
		code, _ = fieldString(o, "value")
	}
	return matchSystemCode(system, code, p)
}

// matchSystemCode implements the core (system, code) comparison: either
// system is empty (query or actual) or they are case-insensitively equal,
// AND the codes are case-insensitively equal.
func matchSystemCode(actualSystem, actualCode string, p *ParsedSearchParameter) bool {
	for _, qc := range p.ValueFhirCodes {
		if qc.System != "" && actualSystem != "" && !strings.EqualFold(actualSystem, qc.System) {
			continue
		}
		if strings.EqualFold(actualCode, qc.Value) {
			return true
		}
	}
	return false
}

func parseBoolLiteral(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errInvalidBool
	}
}

var errInvalidBool = boolParseError{}

type boolParseError struct{}

func (boolParseError) Error() string { return "invalid boolean search literal" }
