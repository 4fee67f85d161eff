package host

import (
	"context"
	"strings"

	"github.com/fhirstore/gofhir/pkg/store/fhirstore"
	"github.com/fhirstore/gofhir/pkg/store/routing"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// Headers carries the subset of conditional-request headers spec.md §4.5's
// interactions read; the transport layer (out of scope) is responsible for
// extracting these from whatever wire format it speaks.
type Headers struct {
	IfMatch         string
	IfNoneMatch     string
	IfModifiedSince string
	IfNoneExist     string
}

// Dispatch implements spec.md §2's "manager selects tenant" step: classify
// (verb, path, query) via pkg/store/routing, look up tenantRoute's store,
// and invoke the matching VersionedStore interaction. Unknown routes and
// unregistered tenants both come back as storeerr-shaped error Responses,
// matching the uniform Response contract every other interaction returns.
func (h *Host) Dispatch(ctx context.Context, tenantRoute string, verb routing.Verb, path, query string, body []byte, headers Headers) fhirstore.Response {
	store, ok := h.TenantStore(tenantRoute)
	if !ok {
		return errResponse(storeerr.New(storeerr.KindInvariant, "no tenant registered for route %q", tenantRoute))
	}

	route := routing.Classify(verb, path, query != "")
	if headers.IfNoneExist != "" {
		route.ConditionalCreate = true
	}

	switch route.Interaction {
	case routing.SystemCapabilities:
		return store.GetMetadata()
	case routing.SystemSearch:
		return store.SystemSearch(ctx, query)
	case routing.SystemBundle:
		return store.ProcessBundle(ctx, body)
	case routing.SystemDeleteConditional:
		return store.SystemDelete(ctx, query)
	case routing.SystemOperation:
		return store.SystemOperation(ctx, route.Operation, body)

	case routing.TypeCreate:
		return store.InstanceCreate(ctx, route.ResourceType, body, "", "", headers.IfNoneExist, false)
	case routing.TypeSearch:
		summary, _ := extractSummary(query)
		return store.TypeSearch(ctx, route.ResourceType, query, summary)
	case routing.TypeDeleteConditional:
		return store.TypeDelete(ctx, route.ResourceType, query)
	case routing.TypeOperation:
		return store.TypeOperation(ctx, route.ResourceType, route.Operation, body)

	case routing.InstanceRead:
		return store.InstanceRead(ctx, route.ResourceType, route.ID, headers.IfMatch, headers.IfModifiedSince, headers.IfNoneMatch)
	case routing.InstanceUpdate:
		return store.InstanceUpdate(ctx, route.ResourceType, route.ID, body, headers.IfMatch, headers.IfNoneMatch, true)
	case routing.InstanceDelete:
		return store.InstanceDelete(ctx, route.ResourceType, route.ID, headers.IfMatch)
	case routing.InstanceReadHistory:
		return store.InstanceHistory(ctx, route.ResourceType, route.ID)
	case routing.InstanceReadVersion:
		return store.InstanceVersionRead(ctx, route.ResourceType, route.ID, route.VersionID)
	case routing.InstanceOperation:
		return store.InstanceOperation(ctx, route.ResourceType, route.ID, route.Operation, body)

	case routing.CompartmentSearch:
		return store.CompartmentSearch(ctx, route.ResourceType, route.ID, route.Compartment, query)
	case routing.CompartmentTypeSearch:
		return store.CompartmentTypeSearch(ctx, route.ResourceType, route.ID, route.CompartmentType, query)

	case routing.InstancePatch:
		return errResponse(storeerr.New(storeerr.KindUnsupportedType, "InstancePatch is not implemented by this core"))

	default:
		return errResponse(storeerr.New(storeerr.KindMalformedInput, "unrecognized request %s %s", verb, path))
	}
}

func errResponse(err error) fhirstore.Response {
	kind := storeerr.KindOf(err)
	return fhirstore.Response{StatusCode: kind.HTTPStatus()}
}

// extractSummary pulls `_summary` out of a raw query string without a full
// search.Parse pass, for the TypeSearch call above which needs it before
// parsing against a registry.
func extractSummary(query string) (string, bool) {
	for _, part := range strings.Split(query, "&") {
		k, v, found := strings.Cut(part, "=")
		if found && k == "_summary" {
			return v, true
		}
	}
	return "", false
}
