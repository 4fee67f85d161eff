// Package fhirstore implements the per-tenant versioned FHIR store of
// spec.md §4.5: one resource.Store per enabled resource type, the FHIR
// interaction verbs, the live CapabilityStatement, and the concurrency
// policy of spec.md §5.
package fhirstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/fhirstore/gofhir/pkg/fhir"
)

// TenantConfig is the immutable-after-Init tenant configuration of spec.md
// §3: a FHIR version, base URL, route, and the set of resource types this
// tenant serves.
type TenantConfig struct {
	FhirVersion  fhir.Version
	TenantRoute  string
	BaseURL      string
	EnabledTypes []string
}

// Option customizes a VersionedStore at construction time.
type Option func(*VersionedStore)

// WithIDGenerator overrides the id generator InstanceCreate uses when the
// body lacks an id or allowExistingId is false. Defaults to uuid.NewString,
// per SPEC_FULL.md's DOMAIN STACK (grounded in Nirmitee-tech-headless-ehr-fhir).
func WithIDGenerator(gen func() string) Option {
	return func(s *VersionedStore) { s.idGen = gen }
}

// WithClock overrides the clock used to stamp meta.lastUpdated, for
// deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *VersionedStore) { s.now = now }
}

// WithValidator attaches a *validator.Validator (any type satisfying
// ResourceValidator) so $validate and the pre-commit check in
// InstanceCreate/InstanceUpdate run full structural validation instead of
// the well-formedness-only fallback.
func WithValidator(v ResourceValidator) Option {
	return func(s *VersionedStore) { s.validator = v }
}

// WithDefaultPageSize overrides the implementation-defined default `_count`
// used by TypeSearch/SystemSearch when the query omits one. Defaults to 50.
func WithDefaultPageSize(n int) Option {
	return func(s *VersionedStore) { s.defaultPageSize = n }
}

// WithSubscriptionSink attaches the subscription engine so InstanceCreate and
// InstanceUpdate can hand it newly-ingested SubscriptionTopic/Subscription
// resources.
func WithSubscriptionSink(sink SubscriptionSink) Option {
	return func(s *VersionedStore) { s.subscriptionSink = sink }
}

// SetSubscriptionSink attaches sink after construction, for the common case
// where the sink (the subscription engine) itself needs a reference to the
// already-built store to resolve chained parameters and notificationShape
// includes — see pkg/store/host, which builds the store, then the engine,
// then wires them together with this setter.
func (s *VersionedStore) SetSubscriptionSink(sink SubscriptionSink) {
	s.subscriptionSink = sink
}

func defaultIDGenerator() string {
	return uuid.NewString()
}
