// Package host implements the store manager of spec.md §2's component 7:
// it owns the set of configured tenants, dispatches classified requests to
// the right tenant's VersionedStore, and performs async data loading so a
// tenant with a large initial package does not block registration.
package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fhirstore/gofhir/pkg/store/fhirstore"
	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
	"github.com/fhirstore/gofhir/pkg/store/subscription"
)

// TenantConfig is the store host's view of spec.md §3's tenant
// configuration: the immutable store-level settings
// (`fhirstore.TenantConfig`) plus the host-level additions spec.md names —
// the packages to seed at startup and the channels subscriptions may
// deliver to. Kept distinct from `fhirstore.TenantConfig` because the
// per-tenant store has no business knowing about package loading or
// delivery channels; see DESIGN.md.
type TenantConfig struct {
	Store fhirstore.TenantConfig
	// Seed holds canonical-JSON resources to load asynchronously after the
	// tenant is registered (spec.md §2's "async package/data loading");
	// RegisterTenant returns before loading completes.
	Seed [][]byte
	// Channel is where the tenant's subscription engine delivers
	// notification bundles. Nil is valid: notifications are assembled but
	// never delivered, useful for tenants with no active subscriptions yet.
	Channel subscription.Channel
}

// tenant bundles one tenant's store, its subscription engine, and the
// load-completion signal async seeding reports through.
type tenant struct {
	store    *fhirstore.VersionedStore
	engine   *subscription.Engine
	config   TenantConfig
	loadedCh chan struct{}
	loadErr  error
}

// Host owns every registered tenant, keyed by TenantRoute, and dispatches
// classified requests to the matching one (spec.md §2's "manager selects
// tenant").
type Host struct {
	mu      sync.RWMutex
	tenants map[string]*tenant
	logger  *slog.Logger
}

// NewHost builds an empty Host. A nil logger defaults to slog.Default(),
// used only for async seeding failures and subscription delivery warnings.
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{tenants: make(map[string]*tenant), logger: logger}
}

// RegisterTenant builds a VersionedStore and subscription Engine for cfg,
// wires the engine as the store's SubscriptionSink and as a Listener on
// every enabled type's event stream, and kicks off asynchronous seeding of
// cfg.Seed. It returns immediately; seeding progresses in the background.
func (h *Host) RegisterTenant(cfg TenantConfig, opts ...fhirstore.Option) (*fhirstore.VersionedStore, error) {
	h.mu.Lock()
	if _, exists := h.tenants[cfg.Store.TenantRoute]; exists {
		h.mu.Unlock()
		return nil, storeerr.New(storeerr.KindInvariant, "tenant route %q already registered", cfg.Store.TenantRoute)
	}
	h.mu.Unlock()

	store := fhirstore.NewVersionedStore(cfg.Store, opts...)
	engine := subscription.NewEngine(store, store, cfg.Channel, h.logger)
	store.SetSubscriptionSink(engine)

	t := &tenant{store: store, engine: engine, config: cfg, loadedCh: make(chan struct{})}

	h.mu.Lock()
	h.tenants[cfg.Store.TenantRoute] = t
	h.mu.Unlock()

	for _, rt := range cfg.Store.EnabledTypes {
		e := engine
		_ = store.SubscribeEvents(rt, func(ev resource.Event) { e.HandleEvent(context.Background(), ev) })
	}

	go h.seed(t)

	return store, nil
}

// TenantStore returns the registered store for route, or ok=false.
func (h *Host) TenantStore(route string) (*fhirstore.VersionedStore, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tenants[route]
	if !ok {
		return nil, false
	}
	return t.store, true
}

// TenantEngine returns the registered subscription engine for route, or
// ok=false. Exposed for callers (e.g. a transport layer) that need to call
// ChangeSubscriptionStatus directly.
func (h *Host) TenantEngine(route string) (*subscription.Engine, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tenants[route]
	if !ok {
		return nil, false
	}
	return t.engine, true
}

// WaitForSeed blocks until route's async seed load completes, returning any
// error it failed with. Intended for tests; production callers should not
// need to block on seeding.
func (h *Host) WaitForSeed(ctx context.Context, route string) error {
	h.mu.RLock()
	t, ok := h.tenants[route]
	h.mu.RUnlock()
	if !ok {
		return storeerr.New(storeerr.KindInvariant, "tenant route %q not registered", route)
	}
	select {
	case <-t.loadedCh:
		return t.loadErr
	case <-ctx.Done():
		return storeerr.Cancelled()
	}
}

// seed loads t.config.Seed resources directly into their per-type stores,
// bypassing validation and the conditional-create/subscription-sink hooks
// InstanceCreate runs for ordinary writes — spec.md §2's "async package/data
// loading" is a bulk load of already-valid resources, not client traffic.
func (h *Host) seed(t *tenant) {
	defer close(t.loadedCh)
	for _, raw := range t.config.Seed {
		draft, err := resource.NewInstance(raw)
		if err != nil {
			t.loadErr = err
			h.logger.Warn("seeding tenant failed", "tenant", t.config.Store.TenantRoute, "error", err)
			return
		}
		if _, err := t.store.TryInstanceCreate(draft.ResourceType, raw, true); err != nil {
			t.loadErr = err
			h.logger.Warn("seeding tenant failed", "tenant", t.config.Store.TenantRoute, "error", err)
			return
		}
	}
}
