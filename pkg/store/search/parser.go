package search

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IncludeDirective is a parsed `_include` or `_revinclude` clause.
type IncludeDirective struct {
	// SourceType is the resource type the include is declared on ("*" for
	// the wildcard form `_include=*`).
	SourceType string
	// SearchParam is the reference search parameter name to follow.
	SearchParam string
	// TargetType restricts the included resource's type (the optional
	// `:TargetType` suffix); empty means any type the parameter can reference.
	TargetType string
	// Iterate marks `_include:iterate` / `_revinclude:iterate`.
	Iterate bool
	Reverse bool
}

// ParseResult is everything Parse extracts from one query string.
type ParseResult struct {
	// Params holds one entry per occurrence of a search key in the query
	// string (repeating a key is logical AND, per spec.md §4.2); all
	// entries share Name for a repeated key. Comma-separated values within
	// one occurrence are logical OR and live together in one entry's Values.
	Params     []*ParsedSearchParameter
	Includes   []IncludeDirective
	Count      int
	HasCount   bool
	Offset     int
	Sort       []SortField
	Summary    string
	TypeFilter []string // `_type` values for SystemSearch
}

// SortField is one `_sort` clause.
type SortField struct {
	Param      string
	Descending bool
}

// Parse splits a raw query string into structured parameters, per spec.md
// §4.2. registry resolves parameter definitions for resourceType; it is
// also used recursively to resolve chained parameters against other types.
func Parse(resourceType, rawQuery string, registry Registry) (*ParseResult, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	result := &ParseResult{}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		occurrences := values[key]
		switch {
		case key == "_include" || strings.HasPrefix(key, "_include:"):
			result.Includes = append(result.Includes, parseIncludeKey(key, occurrences, false)...)
			continue
		case key == "_revinclude" || strings.HasPrefix(key, "_revinclude:"):
			result.Includes = append(result.Includes, parseIncludeKey(key, occurrences, true)...)
			continue
		case key == "_count":
			if n, err := strconv.Atoi(occurrences[0]); err == nil {
				result.Count = n
				result.HasCount = true
			}
			continue
		case key == "_offset":
			if n, err := strconv.Atoi(occurrences[0]); err == nil {
				result.Offset = n
			}
			continue
		case key == "_summary":
			result.Summary = occurrences[0]
			continue
		case key == "_sort":
			result.Sort = parseSort(occurrences[0])
			continue
		case key == "_type":
			result.TypeFilter = strings.Split(occurrences[0], ",")
			continue
		}

		if strings.HasPrefix(key, "_has:") {
			result.Params = append(result.Params, parseHasKey(key, occurrences))
			continue
		}

		for _, raw := range occurrences {
			result.Params = append(result.Params, buildParam(resourceType, key, raw, registry))
		}
	}
	return result, nil
}

// buildParam parses one key=value occurrence into a single ParsedSearchParameter.
func buildParam(resourceType, key, rawValue string, registry Registry) *ParsedSearchParameter {
	name, modLiteral, _ := strings.Cut(key, ":")
	chainHead, chainRest, isChain := strings.Cut(name, ".")

	lookupName := name
	if isChain {
		lookupName = chainHead
	}

	def, found := registry.Lookup(resourceType, lookupName)
	if !found {
		if pt, ok := IsCommonParam(lookupName); ok {
			def = Definition{Name: lookupName, Type: pt}
			found = true
		}
	}
	if !found {
		// Unknown parameter: marked ignored, not an error (spec.md §4.2).
		return &ParsedSearchParameter{
			Name: name, ModifierLiteral: modLiteral, Modifier: ParseModifier(modLiteral),
			IgnoredParameter: true, IgnoredReason: "unknown search parameter",
		}
	}

	modifier := ParseModifier(modLiteral)
	if modifier == ModifierResourceType && def.Type != ParamTypeReference {
		modifier = ModifierNone
	}

	p := &ParsedSearchParameter{
		Name: lookupName, ModifierLiteral: modLiteral, Modifier: modifier,
		ParamType: def.Type, SelectExpression: def.Expression, CompiledExpression: def.Compiled,
	}

	if !IsCompatible(def.Type, modifier) && modifier != ModifierResourceType {
		p.IgnoredParameter = true
		p.IgnoredReason = "modifier " + modLiteral + " incompatible with type " + def.Type.String()
		return p
	}

	if def.Type == ParamTypeComposite {
		parseCompositeValue(p, def, rawValue)
		return p
	}

	if isChain {
		if def.Type != ParamTypeReference {
			p.IgnoredParameter = true
			p.IgnoredReason = "chain on non-reference parameter"
			return p
		}
		p.ChainTargetTypes = def.ChainTargets
		p.ChainedParameters = make(map[string]*ParsedSearchParameter)
		for _, targetType := range def.ChainTargets {
			childResult, err := Parse(targetType, url.Values{chainRest: []string{rawValue}}.Encode(), registry)
			if err != nil || len(childResult.Params) == 0 {
				continue
			}
			p.ChainedParameters[targetType] = childResult.Params[0]
		}
		return p
	}

	for _, v := range strings.Split(rawValue, ",") {
		parseOneValue(p, v)
	}
	return p
}

func parseOneValue(p *ParsedSearchParameter, raw string) {
	p.Values = append(p.Values, raw)
	if p.Modifier == ModifierMissing {
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
		return
	}
	switch p.ParamType {
	case ParamTypeDate:
		prefix, lit := SplitPrefix(p.ParamType, raw)
		win, err := parseDateLiteral(lit)
		if err != nil {
			p.IgnoredValueFlags = append(p.IgnoredValueFlags, true)
			return
		}
		p.Prefixes = append(p.Prefixes, prefix)
		p.ValueDateStarts = append(p.ValueDateStarts, win.Start)
		p.ValueDateEnds = append(p.ValueDateEnds, win.End)
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	case ParamTypeNumber:
		prefix, lit := SplitPrefix(p.ParamType, raw)
		d, err := decimal.NewFromString(lit)
		if err != nil {
			p.IgnoredValueFlags = append(p.IgnoredValueFlags, true)
			return
		}
		p.Prefixes = append(p.Prefixes, prefix)
		p.ValueDecimals = append(p.ValueDecimals, d)
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	case ParamTypeQuantity:
		prefix, lit := SplitPrefix(p.ParamType, raw)
		q, err := parseQuantityValue(lit)
		if err != nil {
			p.IgnoredValueFlags = append(p.IgnoredValueFlags, true)
			return
		}
		p.Prefixes = append(p.Prefixes, prefix)
		p.ValueQuantities = append(p.ValueQuantities, q)
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	case ParamTypeToken:
		system, code, hasPipe := strings.Cut(raw, "|")
		if !hasPipe {
			system, code = "", raw
		}
		p.ValueFhirCodes = append(p.ValueFhirCodes, FHIRCode{System: system, Value: code})
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	case ParamTypeReference:
		p.ValueReferences = append(p.ValueReferences, ParseReferenceValue(raw))
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	default: // String, URI
		p.IgnoredValueFlags = append(p.IgnoredValueFlags, false)
	}
}

// parseCompositeValue handles one occurrence of a composite parameter: the
// raw value is comma-split into OR-alternatives, each of which is itself
// `$`-split into one value per ordered component, per spec.md §4.2/§4.3.
func parseCompositeValue(p *ParsedSearchParameter, def Definition, rawValue string) {
	for _, combo := range strings.Split(rawValue, ",") {
		parts := strings.Split(combo, "$")
		group := make([]*ParsedSearchParameter, 0, len(def.Components))
		for i, comp := range def.Components {
			child := &ParsedSearchParameter{
				Name: comp.Name, ParamType: comp.Type, SelectExpression: comp.Expression,
			}
			if i < len(parts) {
				parseOneValue(child, parts[i])
			}
			group = append(group, child)
		}
		p.CompositeComponents = append(p.CompositeComponents, group...)
		p.CompositeGroupSizes = append(p.CompositeGroupSizes, len(group))
	}
}

func parseHasKey(key string, vals []string) *ParsedSearchParameter {
	// `_has:{SourceType}:{RefParam}:{Param}` - structurally parsed only.
	segs := strings.SplitN(key, ":", 4)
	link := &ReverseChainLink{}
	if len(segs) >= 3 {
		link.SourceType = segs[1]
		link.RefParam = segs[2]
	}
	if len(segs) == 4 {
		link.Param = segs[3]
	}
	return &ParsedSearchParameter{
		Name: key, Values: vals, IgnoredParameter: true,
		IgnoredReason:               "_has reverse chaining is not evaluated in this core",
		ReverseChainedParameterLink: link,
	}
}

func parseIncludeKey(key string, vals []string, reverse bool) []IncludeDirective {
	_, modLiteral, _ := strings.Cut(key, ":")
	iterate := modLiteral == "iterate" || modLiteral == "recurse"
	out := make([]IncludeDirective, 0, len(vals))
	for _, v := range vals {
		parts := strings.Split(v, ":")
		d := IncludeDirective{Iterate: iterate, Reverse: reverse}
		if len(parts) >= 1 {
			d.SourceType = parts[0]
		}
		if len(parts) >= 2 {
			d.SearchParam = parts[1]
		}
		if len(parts) >= 3 {
			d.TargetType = parts[2]
		}
		if v == "*" {
			d.SourceType = "*"
		}
		out = append(out, d)
	}
	return out
}

func parseSort(raw string) []SortField {
	fields := strings.Split(raw, ",")
	out := make([]SortField, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			out = append(out, SortField{Param: f[1:], Descending: true})
		} else {
			out = append(out, SortField{Param: f})
		}
	}
	return out
}

func parseQuantityValue(raw string) (ParsedQuantity, error) {
	parts := strings.SplitN(raw, "|", 3)
	d, err := decimal.NewFromString(parts[0])
	if err != nil {
		return ParsedQuantity{}, err
	}
	q := ParsedQuantity{Value: d}
	if len(parts) >= 2 {
		q.System = parts[1]
	}
	if len(parts) >= 3 {
		q.Code = parts[2]
	}
	return q, nil
}
