package fhirstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirstore/gofhir/pkg/fhir"
)

func newCapabilityTestStore() *VersionedStore {
	cfg := TenantConfig{
		FhirVersion:  fhir.R4,
		TenantRoute:  "test",
		EnabledTypes: []string{"Patient", "SearchParameter"},
	}
	return NewVersionedStore(cfg, WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }))
}

func TestGetMetadataListsEnabledTypesAndCommonParams(t *testing.T) {
	s := newCapabilityTestStore()
	resp := s.GetMetadata()
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.ResourceOut), `"type":"Patient"`)
	assert.Contains(t, string(resp.ResourceOut), `"name":"_id"`)
	assert.Contains(t, string(resp.ResourceOut), `"fhirVersion":"R4"`)
}

func TestGetMetadataIsCachedUntilInvalidated(t *testing.T) {
	s := newCapabilityTestStore()
	first := s.GetMetadata()
	second := s.GetMetadata()
	assert.Equal(t, string(first.ResourceOut), string(second.ResourceOut))

	sp := []byte(`{"resourceType":"SearchParameter","code":"active","type":"token","base":["Patient"],"expression":"Patient.active"}`)
	require.Equal(t, 201, s.InstanceCreate(context.Background(), "SearchParameter", sp, "", "", "", false).StatusCode)

	third := s.GetMetadata()
	assert.Contains(t, string(third.ResourceOut), `"name":"active"`)
	assert.NotEqual(t, string(first.ResourceOut), string(third.ResourceOut))
}
