package search

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchQuantity implements spec.md §4.3's Quantity rule: units match iff
// either system is empty or both systems are equal, AND either the query
// code is empty or it equals the element's `code` OR its `unit` (a query of
// `cL/s` must match an element whose `code` is a coded value like `265201`
// but whose `unit` carries the display string the code resolves to — see
// spec.md's value-quantity scenario and DESIGN.md). No unit conversion is
// performed (§9: the source has a TODO here and this core intentionally
// preserves the no-conversion default). Magnitude comparison then follows
// the same prefix rules as Number.
func matchQuantity(el types.Value, p *ParsedSearchParameter) bool {
	o, ok := asObject(el)
	if !ok {
		return false
	}
	value, hasValue := elementQuantityValue(o)
	if !hasValue {
		return false
	}
	system, _ := fieldString(o, "system")
	code, _ := fieldString(o, "code")
	unit, _ := fieldString(o, "unit")

	for i, q := range p.ValueQuantities {
		if p.IgnoredValueFlags[i] {
			continue
		}
		if !quantityUnitsMatch(system, code, unit, q.System, q.Code) {
			continue
		}
		prefix := PrefixEq
		if i < len(p.Prefixes) {
			prefix = p.Prefixes[i]
		}
		if compareDecimal(prefix, value, q.Value, false) {
			return true
		}
	}
	return false
}

func elementQuantityValue(o *types.ObjectValue) (decimal.Decimal, bool) {
	raw, ok := o.Get("value")
	if !ok {
		return decimal.Decimal{}, false
	}
	d, _, found := elementDecimal(raw)
	return d, found
}

func quantityUnitsMatch(actualSystem, actualCode, actualUnit, querySystem, queryCode string) bool {
	if querySystem != "" && actualSystem != "" && !strings.EqualFold(actualSystem, querySystem) {
		return false
	}
	if queryCode == "" {
		return true
	}
	return strings.EqualFold(actualCode, queryCode) || strings.EqualFold(actualUnit, queryCode)
}
