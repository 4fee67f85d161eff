package fhirstore

import (
	"context"
	"sync"
	"time"

	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
	"github.com/fhirstore/gofhir/pkg/validator"
)

// ResourceValidator is the subset of *validator.Validator the store needs,
// kept as an interface so a tenant can run without structural validation
// loaded (the $validate operation then falls back to a well-formedness-only
// check, per DESIGN.md's Open Question decision).
type ResourceValidator interface {
	Validate(ctx context.Context, resource []byte) (*validator.ValidationResult, error)
}

// Response is the versioned store's uniform interaction result, mirroring
// spec.md §4.5's "(HttpStatusCode, responseResource, responseOutcome, eTag,
// lastModified[, location])" tuple plus the bits a transport-layer
// FhirResponseContext (spec.md §6) would copy out.
type Response struct {
	StatusCode   int
	ResourceType string
	ID           string
	VersionID    string
	LastModified time.Time
	Location     string
	ETag         string
	ResourceOut  []byte
	OutcomeOut   []byte
}

// VersionedStore is the per-tenant store of spec.md §4.5: one resource.Store
// per enabled type, the search-parameter registry, and the concurrency
// policy of spec.md §5.
type VersionedStore struct {
	Config TenantConfig

	// txMu arbitrates spec.md §5's concurrency policy: ordinary interactions
	// (including search, which only reads per-type locks) hold RLock;
	// ProcessBundle(transaction) holds the exclusive Lock for the duration.
	txMu sync.RWMutex

	typesMu sync.RWMutex
	stores  map[string]*resource.Store
	enabled map[string]bool

	registry *search.MapRegistry

	capMu       sync.Mutex
	capRevision int
	capCache    []byte

	idGen           func() string
	now             func() time.Time
	validator       ResourceValidator
	defaultPageSize int

	subscriptionSink SubscriptionSink
}

// SubscriptionSink receives newly-created/updated SubscriptionTopic and
// Subscription resources, per spec.md §4.5's "delegate to §4.6". Kept as an
// interface so this package never imports pkg/store/subscription; the store
// host wires the engine in via WithSubscriptionSink.
type SubscriptionSink interface {
	IngestTopic(raw []byte) error
	IngestSubscription(raw []byte) error
}

// NewVersionedStore builds a store for cfg with an empty resource.Store for
// each enabled type and registers listeners that invalidate the cached
// CapabilityStatement on any SearchParameter mutation.
func NewVersionedStore(cfg TenantConfig, opts ...Option) *VersionedStore {
	s := &VersionedStore{
		Config:  cfg,
		stores:  make(map[string]*resource.Store),
		enabled: make(map[string]bool),
		registry:        search.NewMapRegistry(),
		idGen:           defaultIDGenerator,
		now:             time.Now,
		defaultPageSize: 50,
	}
	for _, t := range cfg.EnabledTypes {
		s.enabled[t] = true
		s.stores[t] = resource.NewStore(t)
	}
	for _, opt := range opts {
		opt(s)
	}
	if sp, ok := s.stores["SearchParameter"]; ok {
		sp.Subscribe(func(ev resource.Event) { s.invalidateCapability() })
	}
	return s
}

// storeFor returns the per-type resource.Store for typ, or
// storeerr.UnsupportedType if typ is not in this tenant's enabled set.
func (s *VersionedStore) storeFor(typ string) (*resource.Store, error) {
	s.typesMu.RLock()
	defer s.typesMu.RUnlock()
	if !s.enabled[typ] {
		return nil, storeerr.UnsupportedType(typ)
	}
	return s.stores[typ], nil
}

// EnabledTypes returns the resource types this tenant currently serves, in
// no particular order; GetMetadata sorts its own copy.
func (s *VersionedStore) EnabledTypes() []string {
	s.typesMu.RLock()
	defer s.typesMu.RUnlock()
	out := make([]string, 0, len(s.enabled))
	for t := range s.enabled {
		out = append(out, t)
	}
	return out
}

func (s *VersionedStore) invalidateCapability() {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	s.capRevision++
	s.capCache = nil
}

// Lookup implements search.Registry over this tenant's registered
// SearchParameters, letting the subscription engine compile queryCriteria
// and filterBy expressions without this package importing
// pkg/store/subscription.
func (s *VersionedStore) Lookup(resourceType, name string) (search.Definition, bool) {
	return s.registry.Lookup(resourceType, name)
}

// Resolve implements search.Referent over this tenant's stores, used by the
// search evaluator's chained-parameter resolution.
func (s *VersionedStore) Resolve(resourceType, id string) ([]byte, bool) {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return nil, false
	}
	inst, ok := st.Get(id)
	if !ok {
		return nil, false
	}
	return inst.JSON, true
}

// SubscribeEvents registers fn on resourceType's per-type store. The store
// host uses this to wire the subscription engine's trigger evaluation
// (spec.md §4.6) onto every enabled type's mutation events, without this
// package importing pkg/store/subscription.
func (s *VersionedStore) SubscribeEvents(resourceType string, fn resource.Listener) error {
	st, err := s.storeFor(resourceType)
	if err != nil {
		return err
	}
	st.Subscribe(fn)
	return nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return storeerr.Cancelled()
	default:
		return nil
	}
}
