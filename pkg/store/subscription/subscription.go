package subscription

import (
	"time"

	"github.com/buger/jsonparser"

	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// ContentLevel is the notification shape a Subscription requests, per
// spec.md §4.6.
type ContentLevel int

const (
	ContentEmpty ContentLevel = iota
	ContentIDOnly
	ContentFullResource
)

func parseContentLevel(code string) ContentLevel {
	switch code {
	case "id-only":
		return ContentIDOnly
	case "full-resource":
		return ContentFullResource
	default:
		return ContentEmpty
	}
}

// Filter is one `Subscription.filterBy` entry, reusing the search package's
// parameter machinery so a filter evaluates exactly like a search parameter
// (spec.md §4.6's "compile its filters into a list of
// ParsedSearchParameter-equivalent filters scoped to resource types").
type Filter struct {
	ResourceType string
	Param        *search.ParsedSearchParameter
}

// GeneratedEvent is one entry of a subscription's GeneratedEvents log,
// per spec.md §4.6 step 2 and spec.md:40's
// `GeneratedEvents: ordered Map<eventNumber → {Timestamp, Focus, AdditionalContext[]}>`.
type GeneratedEvent struct {
	EventNumber       int64
	Timestamp         time.Time
	Focus             string
	AdditionalContext []string
}

// GeneratedEventLog is spec.md:40's GeneratedEvents: an ordered map keyed by
// eventNumber. Event numbers are allocated strictly increasing, so append
// order already is numeric order; the index exists only for O(1) lookup by
// number. The zero value is ready to use.
type GeneratedEventLog struct {
	order    []int64
	byNumber map[int64]GeneratedEvent
}

func (l *GeneratedEventLog) append(ev GeneratedEvent) {
	if l.byNumber == nil {
		l.byNumber = make(map[int64]GeneratedEvent)
	}
	l.order = append(l.order, ev.EventNumber)
	l.byNumber[ev.EventNumber] = ev
}

// Get looks up a previously recorded event by its eventNumber.
func (l *GeneratedEventLog) Get(eventNumber int64) (GeneratedEvent, bool) {
	ev, ok := l.byNumber[eventNumber]
	return ev, ok
}

// Ordered returns every recorded event in ascending eventNumber order.
func (l *GeneratedEventLog) Ordered() []GeneratedEvent {
	out := make([]GeneratedEvent, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, l.byNumber[n])
	}
	return out
}

// Len reports how many events have been recorded.
func (l *GeneratedEventLog) Len() int {
	return len(l.order)
}

// ParsedSubscription is a compiled Subscription resource.
type ParsedSubscription struct {
	ID            string
	TopicURL      string
	Status        string
	ContentLevel  ContentLevel
	Filters       []Filter
	ShapeIncludes []string

	// GeneratedEvents records every notification event delivered against
	// this subscription, per spec.md:40.
	GeneratedEvents GeneratedEventLog

	eventCounter int64
}

// ParseSubscription decodes a Subscription resource's topic, status,
// content level, filterBy entries, and notificationShape includes; registry
// resolves each filter's search parameter definition against its declared
// resourceType.
func ParseSubscription(raw []byte, knownTopics map[string]*ParsedSubscriptionTopic, registry search.Registry) (*ParsedSubscription, error) {
	id, _ := jsonparser.GetString(raw, "id")
	topicURL, err := jsonparser.GetString(raw, "topic")
	if err != nil || topicURL == "" {
		return nil, storeerr.New(storeerr.KindInvariant, "Subscription.topic is required")
	}
	if _, ok := knownTopics[topicURL]; !ok {
		return nil, storeerr.New(storeerr.KindInvariant, "Subscription.topic %q does not match any known SubscriptionTopic", topicURL)
	}
	status, _ := jsonparser.GetString(raw, "status")
	contentCode, _ := jsonparser.GetString(raw, "content")

	sub := &ParsedSubscription{
		ID:           id,
		TopicURL:     topicURL,
		Status:       status,
		ContentLevel: parseContentLevel(contentCode),
	}

	_, _ = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, arrErr error) {
		if arrErr != nil {
			return
		}
		resourceType, _ := jsonparser.GetString(value, "resourceType")
		paramName, _ := jsonparser.GetString(value, "filterParameter")
		paramValue, _ := jsonparser.GetString(value, "value")
		comparator, _ := jsonparser.GetString(value, "comparator")
		modifier, _ := jsonparser.GetString(value, "modifier")
		if resourceType == "" || paramName == "" {
			return
		}
		key := paramName
		if comparator != "" {
			paramValue = comparator + paramValue
		}
		if modifier != "" {
			key = paramName + ":" + modifier
		}
		parsed, perr := search.Parse(resourceType, key+"="+escapeQueryValue(paramValue), registry)
		if perr != nil || len(parsed.Params) == 0 {
			return
		}
		sub.Filters = append(sub.Filters, Filter{ResourceType: resourceType, Param: parsed.Params[0]})
	}, "filterBy")

	_, _ = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, arrErr error) {
		if dataType == jsonparser.String {
			if s, perr := jsonparser.ParseString(value); perr == nil {
				sub.ShapeIncludes = append(sub.ShapeIncludes, s)
			}
		}
	}, "notificationShape")

	return sub, nil
}

// escapeQueryValue percent-encodes '&' so a filter value containing it
// cannot be mistaken for an additional query parameter when rebuilt into a
// query string for search.Parse.
func escapeQueryValue(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '&' {
			out = append(out, '%', '2', '6')
			continue
		}
		out = append(out, v[i])
	}
	return string(out)
}

// RecordEvent allocates the next monotonic notification event number and
// appends {Timestamp, Focus, AdditionalContext} for it to GeneratedEvents,
// per spec.md §4.6 step 2 ("allocate a monotonic event number, record
// {Timestamp=now, Focus=resource, AdditionalContext=resolved
// "notificationShape" includes} into the subscription").
func (s *ParsedSubscription) RecordEvent(timestamp time.Time, focus string, additionalContext []string) int64 {
	s.eventCounter++
	s.GeneratedEvents.append(GeneratedEvent{
		EventNumber:       s.eventCounter,
		Timestamp:         timestamp,
		Focus:             focus,
		AdditionalContext: additionalContext,
	})
	return s.eventCounter
}
