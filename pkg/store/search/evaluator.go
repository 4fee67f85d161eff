package search

import (
	"context"
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath"
	"github.com/fhirstore/gofhir/pkg/fhirpath/eval"
	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// Referent is a resource the evaluator can resolve a reference to, for
// chained parameter evaluation. The versioned store implements this over
// its per-type resource maps.
type Referent interface {
	// Resolve returns the canonical JSON for (resourceType, id), or ok=false if
	// absent.
	Resolve(resourceType, id string) (json []byte, ok bool)
}

// Result reports, for one resource, which parameters matched and which were
// ignored, per spec.md §4.3.
type Result struct {
	Matched  bool
	Applied  []string
	Ignored  []IgnoredEntry
}

// IgnoredEntry names a parameter that was not applied and why.
type IgnoredEntry struct {
	Name   string
	Reason string
}

// Evaluate runs every non-ignored parameter against resourceJSON and returns
// whether the resource matches, per spec.md §4.3's algorithm: AND across
// parameters, OR across a parameter's values and its extracted elements.
func Evaluate(ctx context.Context, resourceJSON []byte, params []*ParsedSearchParameter, referent Referent) Result {
	res := Result{Matched: true}
	for _, p := range params {
		if p.IgnoredParameter {
			res.Ignored = append(res.Ignored, IgnoredEntry{Name: p.Name, Reason: p.IgnoredReason})
			continue
		}
		res.Applied = append(res.Applied, p.Name)
		if !evaluateParam(ctx, resourceJSON, p, referent) {
			res.Matched = false
		}
	}
	return res
}

func evaluateParam(ctx context.Context, resourceJSON []byte, p *ParsedSearchParameter, referent Referent) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	if p.ParamType == ParamTypeComposite {
		return evaluateComposite(ctx, resourceJSON, p, referent)
	}

	elements, evalCtx := extract(resourceJSON, p)

	if p.Modifier == ModifierMissing {
		return evaluateMissing(p, len(elements) > 0)
	}
	if len(elements) == 0 {
		return p.Modifier == ModifierNot && p.ParamType == ParamTypeToken
	}

	for _, el := range elements {
		if matchElement(evalCtx, el, p, referent) {
			return true
		}
	}
	return false
}

// extract runs the parameter's compiled FHIRPath expression against the
// resource and returns the matching elements plus the evaluation context
// (reused so chained evaluation can rebind %resource to a referent).
func extract(resourceJSON []byte, p *ParsedSearchParameter) (types.Collection, *eval.Context) {
	evalCtx := eval.NewContext(resourceJSON)
	if p.CompiledExpression == nil {
		return nil, evalCtx
	}
	col, err := p.CompiledExpression.EvaluateWithContext(evalCtx)
	if err != nil {
		return nil, evalCtx
	}
	return col, evalCtx
}

// evaluateMissing implements spec.md §4.3's `missing` rule: succeed if
// (query says "true" and the element is absent) or (query says "false" and
// the element is present); if both literals are present in the value list,
// it is always true (an OR of contradictory conditions).
func evaluateMissing(p *ParsedSearchParameter, present bool) bool {
	sawTrue, sawFalse := false, false
	for _, v := range p.Values {
		if strings.HasPrefix(v, "t") {
			sawTrue = true
		} else if strings.HasPrefix(v, "f") {
			sawFalse = true
		}
	}
	if sawTrue && sawFalse {
		return true
	}
	if sawTrue {
		return !present
	}
	if sawFalse {
		return present
	}
	return false
}

// RoutingKey builds the lowercase "{paramType}[-{modifier}]-{elementType}"
// dispatch key spec.md §9 calls out as cheap and worth keeping: it is not
// used for control flow here (a Go type switch dispatches matchElement
// directly, and is checked exhaustively by the compiler) but is exposed so
// callers that log or test per-element dispatch can assert against the same
// key the original design names.
func RoutingKey(p *ParsedSearchParameter, elementType string) string {
	key := strings.ToLower(p.ParamType.String())
	if p.Modifier != ModifierNone && p.Modifier != ModifierResourceType {
		key += "-" + strings.ToLower(p.ModifierLiteral)
	}
	key += "-" + strings.ToLower(elementType)
	return key
}

func matchElement(evalCtx *eval.Context, el types.Value, p *ParsedSearchParameter, referent Referent) bool {
	switch p.ParamType {
	case ParamTypeDate:
		return matchDate(el, p)
	case ParamTypeNumber:
		return matchNumber(el, p)
	case ParamTypeQuantity:
		return matchQuantity(el, p)
	case ParamTypeString:
		return matchString(el, p)
	case ParamTypeToken:
		return matchToken(el, p)
	case ParamTypeURI:
		return matchURI(el, p)
	case ParamTypeReference:
		return matchReference(evalCtx, el, p, referent)
	default:
		return false
	}
}

// evaluateComposite implements spec.md §4.3's Composite rule: a composite
// parameter's own expression extracts candidate "root" elements (e.g. each
// component-code-value-quantity entry); a root satisfies the parameter if
// every component in at least one OR-group (one comma-separated combo of the
// query value) matches something extracted relative to that root, per
// group's AND semantics.
func evaluateComposite(ctx context.Context, resourceJSON []byte, p *ParsedSearchParameter, referent Referent) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	if p.CompiledExpression == nil {
		return false
	}
	rootCtx := eval.NewContext(resourceJSON)
	roots, err := p.CompiledExpression.EvaluateWithContext(rootCtx)
	if err != nil {
		return false
	}
	for _, root := range roots {
		if compositeRootMatches(rootCtx, root, p, referent) {
			return true
		}
	}
	return false
}

func compositeRootMatches(rootCtx *eval.Context, root types.Value, p *ParsedSearchParameter, referent Referent) bool {
	idx := 0
	for _, groupSize := range p.CompositeGroupSizes {
		group := p.CompositeComponents[idx : idx+groupSize]
		idx += groupSize
		if compositeGroupMatches(rootCtx, root, group, referent) {
			return true
		}
	}
	return false
}

// compositeGroupMatches requires every component in group to match some
// element extracted, relative to root, by that component's own expression.
func compositeGroupMatches(rootCtx *eval.Context, root types.Value, group []*ParsedSearchParameter, referent Referent) bool {
	thisCtx := rootCtx.WithThis(types.Collection{root})
	for _, comp := range group {
		expr, err := fhirpathCompile(comp.SelectExpression)
		if err != nil {
			return false
		}
		elements, err := expr.EvaluateWithContext(thisCtx)
		if err != nil || len(elements) == 0 {
			return false
		}
		found := false
		for _, el := range elements {
			if matchElement(thisCtx, el, comp, referent) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func asObject(v types.Value) (*types.ObjectValue, bool) {
	o, ok := v.(*types.ObjectValue)
	return o, ok
}

// fieldString reads a string-valued child field from an object element.
func fieldString(o *types.ObjectValue, field string) (string, bool) {
	v, ok := o.Get(field)
	if !ok {
		return "", false
	}
	if s, ok := v.(types.String); ok {
		return s.Value(), true
	}
	return v.String(), true
}

// fhirpathCompile compiles expr with the process-wide cache; used when the
// search registry hands the evaluator a raw expression it has not compiled
// yet (e.g. composite component expressions built dynamically).
func fhirpathCompile(expr string) (*fhirpath.Expression, error) {
	return fhirpath.GetCached(expr)
}
