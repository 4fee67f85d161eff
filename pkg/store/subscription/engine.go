package subscription

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhirstore/gofhir/pkg/fhirpath"
	"github.com/fhirstore/gofhir/pkg/fhirpath/eval"
	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// InstanceResolver is the subset of *fhirstore.VersionedStore the engine
// needs to resolve `notificationShape` includes and to run chained search
// parameters within a tenant, per spec.md §4.6 step 3.
type InstanceResolver interface {
	search.Referent
	TryInstanceRead(resourceType, id string) (*resource.Instance, bool)
}

// Channel delivers an assembled notification bundle for one subscription.
// Send may block — spec.md §5 requires fan-out to apply backpressure to the
// writer that caused the event via a bounded channel, so a blocking Send is
// the intended behavior, not a bug to route around.
type Channel interface {
	Send(ctx context.Context, subscriptionID string, bundle []byte) error
}

// Engine is the per-tenant subscription engine of spec.md §4.6: topic and
// subscription indices, trigger evaluation on every resource.Event, and
// notification assembly/delivery.
type Engine struct {
	mu sync.RWMutex

	registry search.Registry
	store    InstanceResolver
	channel  Channel
	logger   *slog.Logger

	topicsByURL          map[string]*ParsedSubscriptionTopic
	topicsByType         map[string][]*ParsedSubscriptionTopic
	subscriptions        map[string]*ParsedSubscription
	subscriptionsByTopic map[string][]*ParsedSubscription
}

// NewEngine builds an empty Engine bound to one tenant's store and registry.
// A nil channel is valid: notifications are assembled but Send is never
// called, which is useful for tests that only assert on filter matching.
func NewEngine(store InstanceResolver, registry search.Registry, channel Channel, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:             registry,
		store:                store,
		channel:              channel,
		logger:               logger,
		topicsByURL:          make(map[string]*ParsedSubscriptionTopic),
		topicsByType:         make(map[string][]*ParsedSubscriptionTopic),
		subscriptions:        make(map[string]*ParsedSubscription),
		subscriptionsByTopic: make(map[string][]*ParsedSubscription),
	}
}

// IngestTopic parses and indexes a SubscriptionTopic, implementing
// fhirstore.SubscriptionSink.
func (e *Engine) IngestTopic(raw []byte) error {
	topic, err := ParseSubscriptionTopic(raw)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topicsByURL[topic.URL] = topic
	for _, trig := range topic.Triggers {
		e.topicsByType[trig.Resource] = appendTopicOnce(e.topicsByType[trig.Resource], topic)
	}
	return nil
}

func appendTopicOnce(list []*ParsedSubscriptionTopic, topic *ParsedSubscriptionTopic) []*ParsedSubscriptionTopic {
	for _, t := range list {
		if t.URL == topic.URL {
			return list
		}
	}
	return append(list, topic)
}

// IngestSubscription parses and indexes a Subscription, implementing
// fhirstore.SubscriptionSink.
func (e *Engine) IngestSubscription(raw []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, err := ParseSubscription(raw, e.topicsByURL, e.registry)
	if err != nil {
		return err
	}
	e.subscriptions[sub.ID] = sub
	e.subscriptionsByTopic[sub.TopicURL] = append(e.subscriptionsByTopic[sub.TopicURL], sub)
	return nil
}

// ChangeSubscriptionStatus records the subscription lifecycle transitions
// spec.md §4.6 delegates to the engine (heartbeat/timeout/error handling
// itself lives in the external transport).
func (e *Engine) ChangeSubscriptionStatus(id, status string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subscriptions[id]
	if !ok {
		return storeerr.NotFound("Subscription", id)
	}
	sub.Status = status
	return nil
}

// HandleEvent implements spec.md §4.6's trigger-evaluation algorithm for one
// resource.Event, intended to be wired as a resource.Store Listener.
func (e *Engine) HandleEvent(ctx context.Context, ev resource.Event) {
	e.mu.RLock()
	topics := append([]*ParsedSubscriptionTopic(nil), e.topicsByType[ev.ResourceType]...)
	e.mu.RUnlock()

	for _, topic := range topics {
		for _, trig := range topic.TriggersFor(ev.ResourceType) {
			if !trig.SupportedInteractions[ev.Kind] {
				continue
			}
			if !e.triggerMatches(ctx, trig, ev) {
				continue
			}
			e.fanOut(ctx, topic, ev)
		}
	}
}

func (e *Engine) triggerMatches(ctx context.Context, trig ResourceTrigger, ev resource.Event) bool {
	if trig.QueryCurrent != "" {
		if ev.Current == nil || !e.matchesQuery(ctx, ev.ResourceType, trig.QueryCurrent, ev.Current.JSON) {
			return false
		}
	}
	if trig.QueryPrevious != "" && trig.RequireBoth {
		if ev.Previous == nil || !e.matchesQuery(ctx, ev.ResourceType, trig.QueryPrevious, ev.Previous.JSON) {
			return false
		}
	}
	if trig.CompiledCriteria != nil {
		if !e.fhirpathCriteriaMatches(trig.CompiledCriteria, ev) {
			return false
		}
	}
	return true
}

func (e *Engine) matchesQuery(ctx context.Context, resourceType, query string, resourceJSON []byte) bool {
	parsed, err := search.Parse(resourceType, query, e.registry)
	if err != nil {
		return false
	}
	return search.Evaluate(ctx, resourceJSON, parsed.Params, e.store).Matched
}

// fhirpathCriteriaMatches evaluates trig's compiled fhirPathCriteria against
// a context exposing %previous and %current, per spec.md §4.6 step 1's last
// bullet. The expression's subject resource is the current image when
// present, falling back to the previous image for a delete event.
func (e *Engine) fhirpathCriteriaMatches(expr *fhirpath.Expression, ev resource.Event) bool {
	subject := ev.Current
	if subject == nil {
		subject = ev.Previous
	}
	if subject == nil {
		return false
	}
	evalCtx := eval.NewContext(subject.JSON)
	if ev.Previous != nil {
		if col, err := types.JSONToCollection(ev.Previous.JSON); err == nil {
			evalCtx.SetVariable("previous", col)
		}
	}
	if ev.Current != nil {
		if col, err := types.JSONToCollection(ev.Current.JSON); err == nil {
			evalCtx.SetVariable("current", col)
		}
	}
	result, err := expr.EvaluateWithContext(evalCtx)
	if err != nil {
		return false
	}
	truthy, err := result.ToBoolean()
	return err == nil && truthy
}

// fanOut applies every subscription attached to topic against ev, per
// spec.md §4.6 steps 2-4.
func (e *Engine) fanOut(ctx context.Context, topic *ParsedSubscriptionTopic, ev resource.Event) {
	if ev.Current == nil {
		return
	}
	e.mu.RLock()
	subs := append([]*ParsedSubscription(nil), e.subscriptionsByTopic[topic.URL]...)
	e.mu.RUnlock()

	focusRef := ev.ResourceType + "/" + ev.ResourceID

	for _, sub := range subs {
		if sub.Status != "active" {
			continue
		}
		if !e.subscriptionMatches(ctx, sub, ev) {
			continue
		}
		additionalRefs, additionalInstances := e.resolveShapeIncludes(sub, ev, focusRef)
		eventNumber := sub.RecordEvent(time.Now(), focusRef, additionalRefs)
		bundleJSON, err := e.assembleNotification(sub, ev, eventNumber, focusRef, additionalRefs, additionalInstances)
		if err != nil {
			e.logger.Warn("assembling subscription notification", "subscription", sub.ID, "error", err)
			continue
		}
		if e.channel == nil {
			continue
		}
		if err := e.channel.Send(ctx, sub.ID, bundleJSON); err != nil {
			e.logger.Warn("delivering subscription notification", "subscription", sub.ID, "error", err)
		}
	}
}

func (e *Engine) subscriptionMatches(ctx context.Context, sub *ParsedSubscription, ev resource.Event) bool {
	var params []*search.ParsedSearchParameter
	for _, f := range sub.Filters {
		if f.ResourceType == ev.ResourceType {
			params = append(params, f.Param)
		}
	}
	if len(params) == 0 {
		return true
	}
	return search.Evaluate(ctx, ev.Current.JSON, params, e.store).Matched
}

// resolveShapeIncludes follows sub.ShapeIncludes against ev.Current, the
// same "notificationShape" resolution spec.md §4.6 step 2 requires be
// recorded as AdditionalContext regardless of ContentLevel. It returns the
// resolved reference strings in encounter order plus the instances they
// resolved to, so assembleNotification's ContentFullResource case can embed
// them without looking them up a second time.
func (e *Engine) resolveShapeIncludes(sub *ParsedSubscription, ev resource.Event, focusRef string) ([]string, map[string]*resource.Instance) {
	if ev.Current == nil || len(sub.ShapeIncludes) == 0 {
		return nil, nil
	}
	seen := map[string]bool{focusRef: true}
	instances := make(map[string]*resource.Instance)
	var refs []string
	for _, include := range sub.ShapeIncludes {
		sourceType, paramName, ok := splitShapeInclude(include)
		if !ok || sourceType != ev.ResourceType {
			continue
		}
		def, ok := e.registry.Lookup(sourceType, paramName)
		if !ok {
			continue
		}
		for _, ref := range search.ExtractReferenceStrings(ev.Current.JSON, def) {
			if seen[ref] {
				continue
			}
			seg := search.ParseReferenceValue(ref)
			if seg.ResourceType == "" || seg.ID == "" {
				continue
			}
			inst, ok := e.store.TryInstanceRead(seg.ResourceType, seg.ID)
			if !ok {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
			instances[ref] = inst
		}
	}
	return refs, instances
}

// assembleNotification builds the notification bundle per sub.ContentLevel,
// per spec.md §4.6 step 3. Its first entry is always a SubscriptionStatus
// resource carrying eventsSinceSubscriptionStart and the notificationEvent
// this delivery corresponds to, per spec.md:236 ("its first entry is a
// SubscriptionStatus with eventsSinceSubscriptionStart=1").
func (e *Engine) assembleNotification(sub *ParsedSubscription, ev resource.Event, eventNumber int64, focusRef string, additionalRefs []string, additionalInstances map[string]*resource.Instance) ([]byte, error) {
	status := subscriptionStatus{
		ResourceType:                 "SubscriptionStatus",
		Status:                       sub.Status,
		Type:                         "event-notification",
		EventsSinceSubscriptionStart: eventNumber,
		Subscription:                 reference{Reference: "Subscription/" + sub.ID},
		Topic:                        sub.TopicURL,
		NotificationEvent: []notificationEvent{{
			EventNumber: eventNumber,
			Focus:       &reference{Reference: focusRef},
		}},
	}
	for _, ref := range additionalRefs {
		status.NotificationEvent[0].AdditionalContext = append(status.NotificationEvent[0].AdditionalContext, reference{Reference: ref})
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}

	out := notificationBundle{ResourceType: "Bundle", Type: "subscription-notification"}
	out.Entry = append(out.Entry, notificationEntry{
		FullURL:  "urn:uuid:subscription-status-" + strconv.FormatInt(eventNumber, 10),
		Resource: json.RawMessage(statusJSON),
	})

	switch sub.ContentLevel {
	case ContentEmpty:
		// Status resource only, no further entries, per spec.md §4.6 step 3.
	case ContentIDOnly:
		out.Entry = append(out.Entry, notificationEntry{FullURL: focusRef})
	case ContentFullResource:
		out.Entry = append(out.Entry, notificationEntry{FullURL: focusRef, Resource: json.RawMessage(ev.Current.JSON)})
		for _, ref := range additionalRefs {
			if inst, ok := additionalInstances[ref]; ok {
				out.Entry = append(out.Entry, notificationEntry{FullURL: ref, Resource: json.RawMessage(inst.JSON)})
			}
		}
	}

	return json.Marshal(out)
}

// splitShapeInclude parses a `notificationShape` entry's "ResourceType:param"
// form, the same shape _include directives use (spec.md §4.2).
func splitShapeInclude(include string) (resourceType, param string, ok bool) {
	resourceType, param, found := strings.Cut(include, ":")
	if !found || resourceType == "" || param == "" {
		return "", "", false
	}
	return resourceType, param, true
}

type notificationBundle struct {
	ResourceType string              `json:"resourceType"`
	Type         string              `json:"type"`
	Entry        []notificationEntry `json:"entry,omitempty"`
}

type notificationEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// reference is a minimal FHIR Reference, matching the hand-written wire
// structs the rest of this package/fhirstore use instead of a generated FHIR
// struct library (see DESIGN.md).
type reference struct {
	Reference string `json:"reference"`
}

// subscriptionStatus is entry[0] of every notification bundle, per
// spec.md:236. It mirrors the real FHIR R5 SubscriptionStatus resource
// closely enough to round-trip eventsSinceSubscriptionStart and the
// notificationEvent this delivery carries, without pulling in a generated
// FHIR type for the rest of that resource's surface.
type subscriptionStatus struct {
	ResourceType                 string              `json:"resourceType"`
	Status                       string              `json:"status,omitempty"`
	Type                         string              `json:"type"`
	EventsSinceSubscriptionStart int64               `json:"eventsSinceSubscriptionStart"`
	Subscription                 reference           `json:"subscription"`
	Topic                        string              `json:"topic,omitempty"`
	NotificationEvent            []notificationEvent `json:"notificationEvent,omitempty"`
}

type notificationEvent struct {
	EventNumber       int64       `json:"eventNumber"`
	Focus             *reference  `json:"focus,omitempty"`
	AdditionalContext []reference `json:"additionalContext,omitempty"`
}
