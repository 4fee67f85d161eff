package search

import "github.com/fhirstore/gofhir/pkg/fhirpath"

// Definition is the subset of a SearchParameter resource the parser and
// evaluator need: its search type and the compiled FHIRPath expression used
// to extract matching elements. ChainTargets lists the resource types a
// Reference-typed parameter may point to (SearchParameter.target), used to
// resolve chained parameters.
type Definition struct {
	Name         string
	Type         ParamType
	Expression   string
	Compiled     *fhirpath.Expression
	ChainTargets []string
	// Components holds, for a composite parameter, the ordered list of
	// sub-parameter names and their own Definition, used to build
	// CompositeComponents during parsing.
	Components []CompositeComponentDef
}

// CompositeComponentDef names one ordered sub-expression of a composite
// SearchParameter.
type CompositeComponentDef struct {
	Name       string
	Expression string
	Type       ParamType
}

// Registry resolves a (resourceType, paramName) pair to its Definition. A
// versioned store implements this over its registered SearchParameters plus
// the framework-defined common parameters; the search package only depends
// on this interface, never on the store itself.
type Registry interface {
	// Lookup returns the Definition for name on resourceType, and whether it
	// was found (false covers both "no such parameter" and "ignored").
	Lookup(resourceType, name string) (Definition, bool)
}

// MapRegistry is a minimal in-memory Registry, convenient for tests and for
// the common-parameter overlay every tenant shares.
type MapRegistry struct {
	byType map[string]map[string]Definition
}

// NewMapRegistry builds an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{byType: make(map[string]map[string]Definition)}
}

// Register adds or replaces a Definition for resourceType.
func (r *MapRegistry) Register(resourceType string, def Definition) {
	m, ok := r.byType[resourceType]
	if !ok {
		m = make(map[string]Definition)
		r.byType[resourceType] = m
	}
	m[def.Name] = def
}

// Lookup implements Registry.
func (r *MapRegistry) Lookup(resourceType, name string) (Definition, bool) {
	m, ok := r.byType[resourceType]
	if !ok {
		return Definition{}, false
	}
	d, ok := m[name]
	return d, ok
}

// Names returns the registered parameter names for resourceType, for
// building the CapabilityStatement.
func (r *MapRegistry) Names(resourceType string) []string {
	m := r.byType[resourceType]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names
}

// Count returns the number of registered parameters for resourceType.
func (r *MapRegistry) Count(resourceType string) int {
	return len(r.byType[resourceType])
}

// Remove deletes a registered parameter, e.g. when its SearchParameter
// resource is deleted.
func (r *MapRegistry) Remove(resourceType, name string) {
	if m, ok := r.byType[resourceType]; ok {
		delete(m, name)
	}
}
