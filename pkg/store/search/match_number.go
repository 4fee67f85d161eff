package search

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchNumber implements spec.md §4.3's Number rule: the same prefix
// semantics as Date, applied to the scalar value; `ap` means within 10% of
// the query magnitude for decimals, within 1 unit for integers.
func matchNumber(el types.Value, p *ParsedSearchParameter) bool {
	value, isInt, ok := elementDecimal(el)
	if !ok {
		return false
	}
	for i, q := range p.ValueDecimals {
		if p.IgnoredValueFlags[i] {
			continue
		}
		prefix := PrefixEq
		if i < len(p.Prefixes) {
			prefix = p.Prefixes[i]
		}
		if compareDecimal(prefix, value, q, isInt) {
			return true
		}
	}
	return false
}

func elementDecimal(el types.Value) (decimal.Decimal, bool, bool) {
	switch v := el.(type) {
	case types.Integer:
		return decimal.NewFromInt(v.Value()), true, true
	case types.Decimal:
		return v.Value(), false, true
	case types.String:
		d, err := decimal.NewFromString(v.Value())
		return d, false, err == nil
	default:
		d, err := decimal.NewFromString(strings.TrimSpace(el.String()))
		return d, false, err == nil
	}
}

// compareDecimal applies spec.md §4.3's prefix rule to two arbitrary
// precision decimals. ap treats the query as the reference magnitude: within
// 10% for decimals, within 1 whole unit for integers.
func compareDecimal(prefix Prefix, value, query decimal.Decimal, isInt bool) bool {
	cmp := value.Cmp(query)
	switch prefix {
	case PrefixEq:
		return cmp == 0
	case PrefixNe:
		return cmp != 0
	case PrefixGt, PrefixSa:
		return cmp > 0
	case PrefixLt, PrefixEb:
		return cmp < 0
	case PrefixGe:
		return cmp >= 0
	case PrefixLe:
		return cmp <= 0
	case PrefixAp:
		var tolerance decimal.Decimal
		if isInt {
			tolerance = decimal.NewFromInt(1)
		} else {
			tolerance = query.Abs().Mul(decimal.NewFromFloat(0.1))
		}
		diff := value.Sub(query).Abs()
		return diff.Cmp(tolerance) <= 0
	default:
		return false
	}
}
