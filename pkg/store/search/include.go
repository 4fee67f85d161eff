package search

import "github.com/fhirstore/gofhir/pkg/fhirpath/eval"

// ExtractReferenceStrings evaluates def's compiled expression against
// resourceJSON and returns the `reference` field of every Reference element
// it yields, for `_include`/`_revinclude` resolution (spec.md §4.5). A
// Definition with no compiled expression (an unregistered or malformed
// parameter) yields nothing rather than erroring — an include naming an
// unknown parameter is silently unproductive, matching how an unknown search
// parameter is "ignored, not an error" elsewhere in this package.
func ExtractReferenceStrings(resourceJSON []byte, def Definition) []string {
	if def.Compiled == nil {
		return nil
	}
	ctx := eval.NewContext(resourceJSON)
	col, err := def.Compiled.EvaluateWithContext(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range col {
		o, ok := asObject(el)
		if !ok {
			continue
		}
		if ref, ok := fieldString(o, "reference"); ok && ref != "" {
			out = append(out, ref)
		}
	}
	return out
}
