// Package subscription implements the topic/subscription trigger engine of
// spec.md §4.6: parsing SubscriptionTopic/Subscription resources, evaluating
// every InstanceCreated/InstanceUpdated/InstanceDeleted event against them,
// and assembling notification bundles for delivery.
package subscription

import (
	"github.com/buger/jsonparser"

	"github.com/fhirstore/gofhir/pkg/fhirpath"
	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// ResourceTrigger is one `SubscriptionTopic.resourceTrigger` entry: the
// resource type it watches, which interactions it fires on, and its
// matching criteria, per spec.md §4.6.
type ResourceTrigger struct {
	Resource              string
	SupportedInteractions map[resource.EventKind]bool
	QueryCurrent          string
	QueryPrevious         string
	RequireBoth           bool
	FhirPathCriteria      string
	CompiledCriteria      *fhirpath.Expression
}

// ParsedSubscriptionTopic is a compiled SubscriptionTopic: its canonical url
// and every resourceTrigger, keyed for lookup by resource type.
type ParsedSubscriptionTopic struct {
	URL      string
	Triggers []ResourceTrigger
}

// TriggersFor returns this topic's triggers declared for resourceType.
func (t *ParsedSubscriptionTopic) TriggersFor(resourceType string) []ResourceTrigger {
	var out []ResourceTrigger
	for _, trig := range t.Triggers {
		if trig.Resource == resourceType {
			out = append(out, trig)
		}
	}
	return out
}

// ParseSubscriptionTopic decodes a SubscriptionTopic resource's url and
// resourceTrigger entries, compiling any fhirPathCriteria once at ingest
// time (spec.md §4.6), not on every event.
func ParseSubscriptionTopic(raw []byte) (*ParsedSubscriptionTopic, error) {
	url, err := jsonparser.GetString(raw, "url")
	if err != nil || url == "" {
		return nil, storeerr.New(storeerr.KindInvariant, "SubscriptionTopic.url is required")
	}
	topic := &ParsedSubscriptionTopic{URL: url}

	_, err = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, arrErr error) {
		if arrErr != nil {
			return
		}
		trig := ResourceTrigger{SupportedInteractions: make(map[resource.EventKind]bool)}
		trig.Resource, _ = jsonparser.GetString(value, "resource")

		_, _ = jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, o int, e error) {
			if dt != jsonparser.String {
				return
			}
			code, perr := jsonparser.ParseString(v)
			if perr != nil {
				return
			}
			if kind, ok := parseInteractionCode(code); ok {
				trig.SupportedInteractions[kind] = true
			}
		}, "supportedInteraction")

		trig.QueryCurrent, _ = jsonparser.GetString(value, "queryCriteria", "current")
		trig.QueryPrevious, _ = jsonparser.GetString(value, "queryCriteria", "previous")
		trig.RequireBoth, _ = jsonparser.GetBoolean(value, "queryCriteria", "requireBoth")

		if expr, exprErr := jsonparser.GetString(value, "fhirPathCriteria"); exprErr == nil && expr != "" {
			trig.FhirPathCriteria = expr
			if compiled, cerr := fhirpath.GetCached(expr); cerr == nil {
				trig.CompiledCriteria = compiled
			}
		}

		topic.Triggers = append(topic.Triggers, trig)
	}, "resourceTrigger")
	if err != nil && len(topic.Triggers) == 0 {
		return nil, storeerr.New(storeerr.KindInvariant, "SubscriptionTopic.resourceTrigger is required")
	}

	return topic, nil
}

// parseInteractionCode maps a FHIR `supportedInteraction` code
// (create|update|delete) to the resource.EventKind it triggers on.
func parseInteractionCode(code string) (resource.EventKind, bool) {
	switch code {
	case "create":
		return resource.InstanceCreated, true
	case "update":
		return resource.InstanceUpdated, true
	case "delete":
		return resource.InstanceDeleted, true
	default:
		return 0, false
	}
}
