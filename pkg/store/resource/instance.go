// Package resource implements the per-type resource store (spec.md §4.4): a
// keyed mapping from id to instance with single-writer/multi-reader locking
// and create/update/delete event emission.
package resource

import (
	"strconv"
	"time"

	"github.com/buger/jsonparser"

	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// Instance is one stored FHIR resource: its canonical JSON bytes plus the
// small decoded header every store operation needs without running a full
// FHIRPath evaluation, per SPEC_FULL.md §3a. Never mutated in place — every
// change produces a new *Instance.
type Instance struct {
	ResourceType string
	ID           string
	VersionID    string
	LastUpdated  time.Time
	JSON         []byte
}

// ETag formats the instance's current version as spec.md §6's weak ETag.
func (i *Instance) ETag() string {
	return `W/"` + i.VersionID + `"`
}

// Location formats the instance's canonical relative URL, per spec.md §3's
// location invariant.
func (i *Instance) Location() string {
	return i.ResourceType + "/" + i.ID
}

// NewInstance decodes the header fields out of raw JSON and wraps them with
// the bytes. Fails with storeerr.KindMalformedInput when resourceType is
// missing; a missing id or meta is left blank for the caller to fill in.
func NewInstance(raw []byte) (*Instance, error) {
	resourceType, err := jsonparser.GetString(raw, "resourceType")
	if err != nil || resourceType == "" {
		return nil, storeerr.New(storeerr.KindMalformedInput, "resource body has no resourceType")
	}
	id, _ := jsonparser.GetString(raw, "id")
	versionID, _ := jsonparser.GetString(raw, "meta", "versionId")
	var lastUpdated time.Time
	if lu, err := jsonparser.GetString(raw, "meta", "lastUpdated"); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, lu); err == nil {
			lastUpdated = t
		}
	}
	return &Instance{
		ResourceType: resourceType,
		ID:           id,
		VersionID:    versionID,
		LastUpdated:  lastUpdated,
		JSON:         raw,
	}, nil
}

// Stamped returns a copy of inst with id, meta.versionId, and
// meta.lastUpdated rewritten in the JSON body, the mutation InstanceCreate
// and InstanceUpdate perform before committing to the per-type store (spec.md
// §4.5). jsonparser.Set creates the intermediate "meta" object when absent.
func Stamped(raw []byte, resourceType, id, versionID string, lastUpdated time.Time) (*Instance, error) {
	out, err := jsonparser.Set(raw, []byte(strconv.Quote(id)), "id")
	if err != nil {
		return nil, storeerr.Wrap(storeerr.KindInternal, err, "stamping id onto %s", resourceType)
	}
	out, err = jsonparser.Set(out, []byte(strconv.Quote(versionID)), "meta", "versionId")
	if err != nil {
		return nil, storeerr.Wrap(storeerr.KindInternal, err, "stamping meta.versionId onto %s/%s", resourceType, id)
	}
	stamp := strconv.Quote(lastUpdated.UTC().Format(time.RFC3339Nano))
	out, err = jsonparser.Set(out, []byte(stamp), "meta", "lastUpdated")
	if err != nil {
		return nil, storeerr.Wrap(storeerr.KindInternal, err, "stamping meta.lastUpdated onto %s/%s", resourceType, id)
	}
	return &Instance{
		ResourceType: resourceType,
		ID:           id,
		VersionID:    versionID,
		LastUpdated:  lastUpdated,
		JSON:         out,
	}, nil
}
