package fhirstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirstore/gofhir/pkg/fhir"
)

func newBundleTestStore() *VersionedStore {
	cfg := TenantConfig{
		FhirVersion:  fhir.R4,
		TenantRoute:  "test",
		EnabledTypes: []string{"Patient", "SearchParameter"},
	}
	counter := 0
	return NewVersionedStore(cfg,
		WithIDGenerator(func() string {
			counter++
			return "gen" + string(rune('a'+counter))
		}),
		WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func TestProcessBundleBatchAppliesEntriesIndependently(t *testing.T) {
	s := newBundleTestStore()
	raw := []byte(`{
		"resourceType": "Bundle",
		"type": "batch",
		"entry": [
			{"request": {"method": "POST", "url": "Patient"}, "resource": {"resourceType": "Patient"}},
			{"request": {"method": "POST", "url": "Observation"}, "resource": {"resourceType": "Observation"}}
		]
	}`)
	resp := s.ProcessBundle(context.Background(), raw)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.ResourceOut), `"batch-response"`)
	// The Observation entry fails (type not enabled) but the Patient entry
	// still committed, since batch entries are independent.
	assert.Contains(t, string(resp.ResourceOut), `"201 Created"`)
}

func TestProcessBundleTransactionRollsBackOnFailure(t *testing.T) {
	s := newBundleTestStore()
	raw := []byte(`{
		"resourceType": "Bundle",
		"type": "transaction",
		"entry": [
			{"request": {"method": "POST", "url": "Patient"}, "resource": {"resourceType": "Patient"}},
			{"request": {"method": "POST", "url": "Observation"}, "resource": {"resourceType": "Observation"}}
		]
	}`)
	resp := s.ProcessBundle(context.Background(), raw)
	assert.GreaterOrEqual(t, resp.StatusCode, 400)

	search := s.TypeSearch(context.Background(), "Patient", "", "")
	assert.Contains(t, string(search.ResourceOut), `"total":0`)
}

func TestProcessBundleTransactionCommitsWhenAllSucceed(t *testing.T) {
	s := newBundleTestStore()
	raw := []byte(`{
		"resourceType": "Bundle",
		"type": "transaction",
		"entry": [
			{"request": {"method": "POST", "url": "Patient"}, "resource": {"resourceType": "Patient"}},
			{"request": {"method": "POST", "url": "Patient"}, "resource": {"resourceType": "Patient"}}
		]
	}`)
	resp := s.ProcessBundle(context.Background(), raw)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.ResourceOut), `"transaction-response"`)

	search := s.TypeSearch(context.Background(), "Patient", "", "")
	assert.Contains(t, string(search.ResourceOut), `"total":2`)
}

func TestProcessBundleRejectsUnknownType(t *testing.T) {
	s := newBundleTestStore()
	resp := s.ProcessBundle(context.Background(), []byte(`{"resourceType":"Bundle","type":"searchset"}`))
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
}
