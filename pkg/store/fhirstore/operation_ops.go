package fhirstore

import (
	"context"

	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// TypeOperation implements spec.md §4.5's `$...` dispatch scoped to a
// resource type, given a candidate resource in body ($validate's usual form:
// POST {type}/$validate).
func (s *VersionedStore) TypeOperation(ctx context.Context, resourceType, name string, body []byte) Response {
	switch name {
	case "validate":
		return s.validateResource(ctx, body)
	default:
		return unsupportedOperation(name)
	}
}

// InstanceOperation implements `$...` dispatch against a stored instance;
// $validate with an empty body validates the instance as currently stored.
func (s *VersionedStore) InstanceOperation(ctx context.Context, resourceType, id, name string, body []byte) Response {
	switch name {
	case "validate":
		if len(body) == 0 {
			st, err := s.storeFor(resourceType)
			if err != nil {
				return errorResponse(err)
			}
			inst, ok := st.Get(id)
			if !ok {
				return errorResponse(storeerr.NotFound(resourceType, id))
			}
			body = inst.JSON
		}
		return s.validateResource(ctx, body)
	default:
		return unsupportedOperation(name)
	}
}

// SystemOperation implements whole-system `$...` dispatch. This core
// registers none beyond the per-type/per-instance $validate.
func (s *VersionedStore) SystemOperation(ctx context.Context, name string, body []byte) Response {
	return unsupportedOperation(name)
}

func unsupportedOperation(name string) Response {
	return errorResponse(storeerr.New(storeerr.KindUnsupportedType, "operation $%s is not supported", name))
}

// validateResource runs $validate, per spec.md §4.5's "at minimum, $validate
// must succeed for any resource" and DESIGN.md's Open Question decision: a
// well-formedness-only OperationOutcome when the tenant has no
// ResourceValidator configured (this tree ships no StructureDefinition
// registry to validate structurally against), full ValidationResult-derived
// issues otherwise.
func (s *VersionedStore) validateResource(ctx context.Context, body []byte) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	if _, err := resource.NewInstance(body); err != nil {
		return Response{StatusCode: 422, OutcomeOut: outcomeFromError(err)}
	}
	if s.validator == nil {
		return Response{StatusCode: 200, OutcomeOut: outcomeOK("resource is well-formed JSON; no structural validator configured for this tenant")}
	}
	result, err := s.validator.Validate(ctx, body)
	if err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindInternal, err, "running validator"))
	}
	status := 200
	if result.HasErrors() {
		status = 422
	}
	return Response{StatusCode: status, OutcomeOut: outcomeFromValidation(result)}
}
