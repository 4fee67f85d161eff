package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstance(t *testing.T) {
	t.Run("decodes header fields", func(t *testing.T) {
		raw := []byte(`{"resourceType":"Patient","id":"example","meta":{"versionId":"2","lastUpdated":"2024-01-02T03:04:05Z"}}`)
		inst, err := NewInstance(raw)
		require.NoError(t, err)
		assert.Equal(t, "Patient", inst.ResourceType)
		assert.Equal(t, "example", inst.ID)
		assert.Equal(t, "2", inst.VersionID)
		assert.Equal(t, 2024, inst.LastUpdated.Year())
	})

	t.Run("missing resourceType is malformed", func(t *testing.T) {
		_, err := NewInstance([]byte(`{"id":"example"}`))
		assert.Error(t, err)
	})

	t.Run("missing id and meta left blank", func(t *testing.T) {
		inst, err := NewInstance([]byte(`{"resourceType":"Patient"}`))
		require.NoError(t, err)
		assert.Empty(t, inst.ID)
		assert.Empty(t, inst.VersionID)
		assert.True(t, inst.LastUpdated.IsZero())
	})
}

func TestStamped(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	raw := []byte(`{"resourceType":"Patient"}`)

	inst, err := Stamped(raw, "Patient", "abc", "1", now)
	require.NoError(t, err)
	assert.Equal(t, "Patient", inst.ResourceType)
	assert.Equal(t, "abc", inst.ID)
	assert.Equal(t, "1", inst.VersionID)
	assert.Equal(t, `W/"1"`, inst.ETag())
	assert.Equal(t, "Patient/abc", inst.Location())

	reparsed, err := NewInstance(inst.JSON)
	require.NoError(t, err)
	assert.Equal(t, "abc", reparsed.ID)
	assert.Equal(t, "1", reparsed.VersionID)
	assert.True(t, now.Equal(reparsed.LastUpdated))
}
