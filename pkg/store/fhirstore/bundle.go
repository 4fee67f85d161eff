package fhirstore

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fhirstore/gofhir/pkg/store/routing"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

type bundleEntryIn struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
	Request  struct {
		Method      string `json:"method"`
		URL         string `json:"url"`
		IfMatch     string `json:"ifMatch"`
		IfNoneMatch string `json:"ifNoneMatch"`
		IfNoneExist string `json:"ifNoneExist"`
	} `json:"request"`
}

type bundleIn struct {
	ResourceType string          `json:"resourceType"`
	Type         string          `json:"type"`
	Entry        []bundleEntryIn `json:"entry"`
}

// ProcessBundle implements spec.md §4.5's `batch`/`transaction` entry point:
// synthesize a sub-request from each entry's request.method + request.url +
// resource, dispatch it to the matching interaction, and collect the result
// into entry.response.
func (s *VersionedStore) ProcessBundle(ctx context.Context, raw []byte) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	var in bundleIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing Bundle"))
	}
	switch in.Type {
	case "batch":
		return s.processBatch(ctx, in)
	case "transaction":
		return s.processTransaction(ctx, in)
	default:
		return errorResponse(storeerr.New(storeerr.KindMalformedInput, "Bundle.type must be \"batch\" or \"transaction\", got %q", in.Type))
	}
}

// processBatch applies every entry independently; one entry's failure does
// not affect the others, per spec.md §5. Each entry takes s.txMu.RLock for
// itself, same as calling the corresponding public Instance*/TypeSearch
// method directly would — dispatchEntry itself runs unlocked so a
// transaction (which holds the exclusive Lock for its whole entry loop) can
// call it without re-acquiring a lock its goroutine already holds.
func (s *VersionedStore) processBatch(ctx context.Context, in bundleIn) Response {
	out := bundle{ResourceType: "Bundle", Type: "batch-response"}
	for _, e := range in.Entry {
		s.txMu.RLock()
		resp, _ := s.dispatchEntry(ctx, e)
		s.txMu.RUnlock()
		out.Entry = append(out.Entry, toResponseEntry(resp))
	}
	data, _ := json.Marshal(out)
	return Response{StatusCode: 200, ResourceOut: data}
}

// processTransaction implements spec.md §5's whole-tenant-exclusive,
// all-or-nothing policy: entries are applied in order under s.txMu's
// exclusive lock; the first entry to fail triggers undoing every entry
// already applied (a compensating-action rollback standing in for a literal
// pre-commit journal — see DESIGN.md), and only that entry's status/outcome
// is returned, matching "drop the journal, return the first failing
// entry's status."
func (s *VersionedStore) processTransaction(ctx context.Context, in bundleIn) Response {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	responses := make([]Response, 0, len(in.Entry))
	for _, e := range in.Entry {
		resp, entryUndo := s.dispatchEntry(ctx, e)
		if resp.StatusCode >= 400 {
			rollback()
			return resp
		}
		if entryUndo != nil {
			undo = append(undo, entryUndo)
		}
		responses = append(responses, resp)
	}

	out := bundle{ResourceType: "Bundle", Type: "transaction-response"}
	for _, resp := range responses {
		out.Entry = append(out.Entry, toResponseEntry(resp))
	}
	data, _ := json.Marshal(out)
	return Response{StatusCode: 200, ResourceOut: data}
}

// dispatchEntry classifies one Bundle entry's request and invokes the
// matching interaction, returning its Response and (for mutations) an undo
// closure a transaction rollback can call to compensate.
//
// This calls the unlocked Instance*/TypeSearch cores (instanceCreateLocked
// etc.), never the public methods that take s.txMu themselves (InstanceRead
// and the $operation methods take no lock and are called directly): both processBatch
// and processTransaction already hold s.txMu (RLock and Lock respectively)
// around their call into dispatchEntry, and s.txMu is a non-reentrant
// sync.RWMutex — calling back into a method that takes its own RLock from
// the same goroutine would self-deadlock under Lock, and double-acquire
// needlessly under RLock.
func (s *VersionedStore) dispatchEntry(ctx context.Context, e bundleEntryIn) (Response, func()) {
	path, query, _ := strings.Cut(e.Request.URL, "?")
	route := routing.Classify(routing.Verb(strings.ToUpper(e.Request.Method)), path, query != "")

	switch route.Interaction {
	case routing.TypeCreate:
		st, err := s.storeFor(route.ResourceType)
		if err != nil {
			return errorResponse(err), nil
		}
		resp := s.instanceCreateLocked(ctx, route.ResourceType, e.Resource, "", "", e.Request.IfNoneExist, false)
		if resp.StatusCode == 201 {
			id := resp.ID
			return resp, func() { st.Remove(id) }
		}
		return resp, nil

	case routing.InstanceRead:
		return s.InstanceRead(ctx, route.ResourceType, route.ID, e.Request.IfMatch, "", e.Request.IfNoneMatch), nil

	case routing.InstanceUpdate:
		st, err := s.storeFor(route.ResourceType)
		if err != nil {
			return errorResponse(err), nil
		}
		previous, existed := st.Get(route.ID)
		resp := s.instanceUpdateLocked(ctx, route.ResourceType, route.ID, e.Resource, e.Request.IfMatch, e.Request.IfNoneMatch, true)
		if resp.StatusCode == 200 || resp.StatusCode == 201 {
			id := route.ID
			return resp, func() {
				if existed {
					_ = st.Replace(id, previous)
				} else {
					st.Remove(id)
				}
			}
		}
		return resp, nil

	case routing.InstanceDelete:
		st, err := s.storeFor(route.ResourceType)
		if err != nil {
			return errorResponse(err), nil
		}
		previous, existed := st.Get(route.ID)
		resp := s.instanceDeleteLocked(ctx, route.ResourceType, route.ID, e.Request.IfMatch)
		if resp.StatusCode == 204 && existed {
			id := route.ID
			return resp, func() { _ = st.Insert(id, previous, true) }
		}
		return resp, nil

	case routing.TypeSearch:
		return s.typeSearchLocked(ctx, route.ResourceType, query, ""), nil

	case routing.TypeOperation, routing.InstanceOperation, routing.SystemOperation:
		return s.dispatchOperationEntry(ctx, route, e), nil

	default:
		return errorResponse(storeerr.New(storeerr.KindMalformedInput, "unsupported Bundle entry request %s %s", e.Request.Method, e.Request.URL)), nil
	}
}

func (s *VersionedStore) dispatchOperationEntry(ctx context.Context, route routing.Route, e bundleEntryIn) Response {
	switch route.Interaction {
	case routing.TypeOperation:
		return s.TypeOperation(ctx, route.ResourceType, route.Operation, e.Resource)
	case routing.InstanceOperation:
		return s.InstanceOperation(ctx, route.ResourceType, route.ID, route.Operation, e.Resource)
	default:
		return s.SystemOperation(ctx, route.Operation, e.Resource)
	}
}

func toResponseEntry(resp Response) bundleEntry {
	entry := bundleEntry{
		Response: &bundleResponse{
			Status:   statusText(resp.StatusCode),
			Location: resp.Location,
			Etag:     resp.ETag,
		},
	}
	if resp.ResourceOut != nil {
		entry.Resource = json.RawMessage(resp.ResourceOut)
	}
	if resp.OutcomeOut != nil {
		entry.Response.Outcome = json.RawMessage(resp.OutcomeOut)
	}
	return entry
}

var statusPhrases = map[int]string{
	200: "OK", 201: "Created", 204: "No Content", 304: "Not Modified",
	400: "Bad Request", 404: "Not Found", 409: "Conflict",
	412: "Precondition Failed", 415: "Unsupported Media Type",
	422: "Unprocessable Entity", 499: "Client Closed Request", 500: "Internal Server Error",
}

func statusText(code int) string {
	if phrase, ok := statusPhrases[code]; ok {
		return strconv.Itoa(code) + " " + phrase
	}
	return strconv.Itoa(code)
}
