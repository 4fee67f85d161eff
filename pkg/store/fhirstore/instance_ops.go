package fhirstore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// recognizedFormats are the wire formats spec.md §6 names. Only JSON is
// actually deserializable in this core (the FHIR wire-format parser itself
// is out of scope per spec.md §1's Non-goals); a caller asking for XML
// source/destination gets UnsupportedMediaType rather than a silent no-op.
func recognizedFormat(f string) bool {
	switch f {
	case "", "json", "application/fhir+json", "application/json":
		return true
	default:
		return false
	}
}

func errorResponse(err error) Response {
	kind := storeerr.KindOf(err)
	return Response{StatusCode: kind.HTTPStatus(), OutcomeOut: outcomeFromError(err)}
}

func instanceResponse(status int, inst *resource.Instance) Response {
	return Response{
		StatusCode:   status,
		ResourceType: inst.ResourceType,
		ID:           inst.ID,
		VersionID:    inst.VersionID,
		LastModified: inst.LastUpdated,
		Location:     inst.Location(),
		ETag:         inst.ETag(),
		ResourceOut:  inst.JSON,
	}
}

// InstanceCreate implements spec.md §4.5's create interaction.
func (s *VersionedStore) InstanceCreate(ctx context.Context, resourceType string, body []byte, sourceFormat, destFormat, ifNoneExist string, allowExistingId bool) Response {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.instanceCreateLocked(ctx, resourceType, body, sourceFormat, destFormat, ifNoneExist, allowExistingId)
}

// instanceCreateLocked is InstanceCreate's body, run either under the public
// method's own s.txMu.RLock or directly by a transaction-mode Bundle entry
// that already holds s.txMu.Lock for the whole entry loop — calling back
// into InstanceCreate there would try to RLock a RWMutex this same
// goroutine already holds exclusively, which self-deadlocks.
func (s *VersionedStore) instanceCreateLocked(ctx context.Context, resourceType string, body []byte, sourceFormat, destFormat, ifNoneExist string, allowExistingId bool) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	if !recognizedFormat(sourceFormat) || !recognizedFormat(destFormat) {
		return errorResponse(storeerr.New(storeerr.KindUnsupportedMediaType, "sourceFormat=%q destFormat=%q not recognized", sourceFormat, destFormat))
	}

	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}

	draft, err := resource.NewInstance(body)
	if err != nil {
		return errorResponse(err)
	}
	if draft.ResourceType != resourceType {
		return errorResponse(storeerr.New(storeerr.KindMalformedInput, "body resourceType %q does not match URL type %q", draft.ResourceType, resourceType))
	}

	if ifNoneExist != "" {
		match, resp, err := s.matchConditional(ctx, resourceType, ifNoneExist, st)
		if err != nil {
			return errorResponse(err)
		}
		if match {
			return resp
		}
	}

	id := draft.ID
	if !allowExistingId || id == "" {
		id = s.idGen()
	} else if _, exists := st.Get(id); exists {
		return errorResponse(storeerr.AlreadyExists(resourceType, id))
	}

	if s.validator != nil {
		result, verr := s.validator.Validate(ctx, body)
		if verr == nil && result.HasErrors() {
			return Response{StatusCode: 422, OutcomeOut: outcomeFromValidation(result)}
		}
	}

	stamped, err := resource.Stamped(body, resourceType, id, "1", s.now())
	if err != nil {
		return errorResponse(err)
	}
	if err := st.Insert(id, stamped, false); err != nil {
		return errorResponse(err)
	}

	s.onCommitted(ctx, resourceType, stamped)
	return instanceResponse(201, stamped)
}

// matchConditional evaluates the ifNoneExist search query against the
// current contents of st; an exact-one match short-circuits InstanceCreate
// with the existing resource, per spec.md §4.5. More than one match is a
// Conflict, matching standard FHIR conditional-create behavior (spec.md
// leaves the exact multi-match status unspecified; see DESIGN.md).
func (s *VersionedStore) matchConditional(ctx context.Context, resourceType, query string, st *resource.Store) (bool, Response, error) {
	parsed, err := search.Parse(resourceType, query, s.registry)
	if err != nil {
		return false, Response{}, storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing ifNoneExist query")
	}
	var matches []*resource.Instance
	for _, inst := range st.Values() {
		if search.Evaluate(ctx, inst.JSON, parsed.Params, s).Matched {
			matches = append(matches, inst)
		}
	}
	switch len(matches) {
	case 0:
		return false, Response{}, nil
	case 1:
		return true, instanceResponse(200, matches[0]), nil
	default:
		return false, Response{}, storeerr.New(storeerr.KindConflict, "ifNoneExist %q matched %d resources", query, len(matches))
	}
}

// InstanceRead implements spec.md §4.5's read interaction. An If-None-Match
// equal to the current ETag yields 304, and an If-Match that differs from it
// yields 412; ifModifiedSince is accepted but not evaluated.
func (s *VersionedStore) InstanceRead(ctx context.Context, resourceType, id, ifMatch, ifModifiedSince, ifNoneMatch string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	inst, ok := st.Get(id)
	if !ok {
		return errorResponse(storeerr.NotFound(resourceType, id))
	}
	if ifNoneMatch != "" && ifNoneMatch == inst.ETag() {
		return Response{StatusCode: 304, ETag: inst.ETag(), LastModified: inst.LastUpdated}
	}
	if ifMatch != "" && ifMatch != inst.ETag() {
		return errorResponse(storeerr.PreconditionFailed(resourceType, id, ifMatch, inst.ETag()))
	}
	return instanceResponse(200, inst)
}

// InstanceVersionRead implements the `vread` interaction. History beyond the
// latest version is out of scope (spec.md §1's Non-goals), so a request for
// any versionId other than the current one is reported NotFound rather than
// resolved from a retained history.
func (s *VersionedStore) InstanceVersionRead(ctx context.Context, resourceType, id, versionID string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	inst, ok := st.Get(id)
	if !ok || inst.VersionID != versionID {
		return errorResponse(storeerr.NotFound(resourceType, id+"/_history/"+versionID))
	}
	return instanceResponse(200, inst)
}

// InstanceHistory implements the `_history` interaction. History beyond the
// latest version is out of scope (spec.md §1's Non-goals), so the returned
// history Bundle always carries exactly one entry: the current version.
func (s *VersionedStore) InstanceHistory(ctx context.Context, resourceType, id string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	inst, ok := st.Get(id)
	if !ok {
		return errorResponse(storeerr.NotFound(resourceType, id))
	}
	b := bundle{ResourceType: "Bundle", Type: "history", Total: intPtr(1)}
	b.Entry = append(b.Entry, bundleEntry{
		FullURL:  inst.Location(),
		Resource: json.RawMessage(inst.JSON),
	})
	data, _ := json.Marshal(b)
	return Response{StatusCode: 200, ResourceOut: data}
}

// InstanceUpdate implements spec.md §4.5's update interaction: increments
// versionId when the instance exists, or creates it with the given id when
// allowCreate permits.
func (s *VersionedStore) InstanceUpdate(ctx context.Context, resourceType, id string, body []byte, ifMatch, ifNoneMatch string, allowCreate bool) Response {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.instanceUpdateLocked(ctx, resourceType, id, body, ifMatch, ifNoneMatch, allowCreate)
}

// instanceUpdateLocked is InstanceUpdate's body; see instanceCreateLocked's
// doc comment for why a transaction-mode Bundle entry calls this directly
// instead of the public, self-locking InstanceUpdate.
func (s *VersionedStore) instanceUpdateLocked(ctx context.Context, resourceType, id string, body []byte, ifMatch, ifNoneMatch string, allowCreate bool) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	draft, err := resource.NewInstance(body)
	if err != nil {
		return errorResponse(err)
	}
	if draft.ResourceType != resourceType {
		return errorResponse(storeerr.New(storeerr.KindMalformedInput, "body resourceType %q does not match URL type %q", draft.ResourceType, resourceType))
	}

	current, exists := st.Get(id)
	if ifNoneMatch == "*" && exists {
		return errorResponse(storeerr.New(storeerr.KindPreconditionFailed, "If-None-Match * but %s/%s already exists", resourceType, id).WithInstance(resourceType, id))
	}
	if exists && ifMatch != "" && ifMatch != current.ETag() {
		return errorResponse(storeerr.PreconditionFailed(resourceType, id, ifMatch, current.ETag()))
	}
	if !exists && !allowCreate {
		return errorResponse(storeerr.NotFound(resourceType, id))
	}

	if s.validator != nil {
		result, verr := s.validator.Validate(ctx, body)
		if verr == nil && result.HasErrors() {
			return Response{StatusCode: 422, OutcomeOut: outcomeFromValidation(result)}
		}
	}

	nextVersion := "1"
	if exists {
		nextVersion = incrementVersion(current.VersionID)
	}
	stamped, err := resource.Stamped(body, resourceType, id, nextVersion, s.now())
	if err != nil {
		return errorResponse(err)
	}

	status := 200
	if exists {
		if err := st.Replace(id, stamped); err != nil {
			return errorResponse(err)
		}
	} else {
		status = 201
		if err := st.Insert(id, stamped, false); err != nil {
			return errorResponse(err)
		}
	}

	s.onCommitted(ctx, resourceType, stamped)
	return instanceResponse(status, stamped)
}

// InstanceDelete implements spec.md §4.5's delete interaction: idempotent,
// succeeding with 204 whether or not id was present, except that an ifMatch
// differing from the stored instance's ETag yields 412.
func (s *VersionedStore) InstanceDelete(ctx context.Context, resourceType, id, ifMatch string) Response {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.instanceDeleteLocked(ctx, resourceType, id, ifMatch)
}

// instanceDeleteLocked is InstanceDelete's body; see instanceCreateLocked's
// doc comment for why a transaction-mode Bundle entry calls this directly
// instead of the public, self-locking InstanceDelete.
func (s *VersionedStore) instanceDeleteLocked(ctx context.Context, resourceType, id, ifMatch string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}

	if current, exists := st.Get(id); exists && ifMatch != "" && ifMatch != current.ETag() {
		return errorResponse(storeerr.PreconditionFailed(resourceType, id, ifMatch, current.ETag()))
	}
	st.Remove(id)
	return Response{StatusCode: 204, ResourceType: resourceType, ID: id}
}

// onCommitted runs the SearchParameter-registration and subscription-sink
// side effects spec.md §4.5 attaches to a successful create/update. Errors
// registering a malformed SearchParameter are swallowed here: the resource
// is already committed, so there's nothing left to roll back to, matching
// the eventually-consistent framing of spec.md §5's capability recomputation.
func (s *VersionedStore) onCommitted(ctx context.Context, resourceType string, stamped *resource.Instance) {
	switch resourceType {
	case "SearchParameter":
		_ = s.registerSearchParameter(stamped.JSON)
	case "SubscriptionTopic":
		if s.subscriptionSink != nil {
			_ = s.subscriptionSink.IngestTopic(stamped.JSON)
		}
	case "Subscription":
		if s.subscriptionSink != nil {
			_ = s.subscriptionSink.IngestSubscription(stamped.JSON)
		}
	}
}

// incrementVersion advances a decimal versionId string by one. A VersionID
// that is not a plain ASCII integer (should never happen for an instance
// this store produced) resets to "1" rather than panicking.
func incrementVersion(v string) string {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return "1"
		}
		n = n*10 + int(r-'0')
	}
	if v == "" {
		return "1"
	}
	n++
	return strconv.Itoa(n)
}

// Try* variants bypass validator, conditional-create, and SearchParameter/
// subscription-sink hook dispatch, per spec.md §4.5. The subscription engine
// uses them to resolve `notificationShape` includes, and the store host uses
// them for startup-time seeding, without re-triggering their own fan-out.

// TryInstanceRead is InstanceRead without conditional-read headers.
func (s *VersionedStore) TryInstanceRead(resourceType, id string) (*resource.Instance, bool) {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return nil, false
	}
	return st.Get(id)
}

// TryInstanceCreate inserts body as-is, assigning a fresh id when body lacks
// one or allowExistingId is false, without validation or hook dispatch.
func (s *VersionedStore) TryInstanceCreate(resourceType string, body []byte, allowExistingId bool) (*resource.Instance, error) {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return nil, err
	}
	draft, err := resource.NewInstance(body)
	if err != nil {
		return nil, err
	}
	id := draft.ID
	if !allowExistingId || id == "" {
		id = s.idGen()
	} else if _, exists := st.Get(id); exists {
		return nil, storeerr.AlreadyExists(resourceType, id)
	}
	stamped, err := resource.Stamped(body, resourceType, id, "1", s.now())
	if err != nil {
		return nil, err
	}
	if err := st.Insert(id, stamped, false); err != nil {
		return nil, err
	}
	return stamped, nil
}

// TryInstanceUpdate replaces or creates id's instance without precondition
// checks, validation, or hook dispatch.
func (s *VersionedStore) TryInstanceUpdate(resourceType, id string, body []byte, allowCreate bool) (*resource.Instance, error) {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return nil, err
	}
	current, exists := st.Get(id)
	if !exists && !allowCreate {
		return nil, storeerr.NotFound(resourceType, id)
	}
	nextVersion := "1"
	if exists {
		nextVersion = incrementVersion(current.VersionID)
	}
	stamped, err := resource.Stamped(body, resourceType, id, nextVersion, s.now())
	if err != nil {
		return nil, err
	}
	if exists {
		if err := st.Replace(id, stamped); err != nil {
			return nil, err
		}
	} else if err := st.Insert(id, stamped, false); err != nil {
		return nil, err
	}
	return stamped, nil
}

// TryInstanceDelete removes id without precondition checks or hook dispatch.
func (s *VersionedStore) TryInstanceDelete(resourceType, id string) error {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return err
	}
	st.Remove(id)
	return nil
}
