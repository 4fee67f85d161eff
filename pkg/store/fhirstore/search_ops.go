package fhirstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/fhirstore/gofhir/pkg/store/resource"
	"github.com/fhirstore/gofhir/pkg/store/search"
	"github.com/fhirstore/gofhir/pkg/store/storeerr"
)

// searchPage runs parsed against every instance in values and returns the
// matches, ordered by `_sort`; pagination and include resolution are left to
// the caller, per spec.md §4.5's TypeSearch/SystemSearch.
func (s *VersionedStore) searchPage(ctx context.Context, parsed *search.ParseResult, values []*resource.Instance) ([]*resource.Instance, error) {
	var matches []*resource.Instance
	for _, inst := range values {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if search.Evaluate(ctx, inst.JSON, parsed.Params, s).Matched {
			matches = append(matches, inst)
		}
	}
	applySort(matches, parsed.Sort)
	return matches, nil
}

// applySort honors `_sort` for the two header fields this store can sort on
// without a second FHIRPath pass (`_id`, `_lastUpdated`); any other sort key
// is accepted but left unsorted; see DESIGN.md.
func applySort(matches []*resource.Instance, fields []search.SortField) {
	if len(fields) == 0 {
		return
	}
	f := fields[0]
	switch f.Param {
	case "_id":
		sort.SliceStable(matches, func(i, j int) bool {
			if f.Descending {
				return matches[i].ID > matches[j].ID
			}
			return matches[i].ID < matches[j].ID
		})
	case "_lastUpdated":
		sort.SliceStable(matches, func(i, j int) bool {
			if f.Descending {
				return matches[i].LastUpdated.After(matches[j].LastUpdated)
			}
			return matches[i].LastUpdated.Before(matches[j].LastUpdated)
		})
	}
}

func (s *VersionedStore) pageBounds(parsed *search.ParseResult) (offset, count int) {
	offset = parsed.Offset
	if offset < 0 {
		offset = 0
	}
	count = s.defaultPageSize
	if parsed.HasCount {
		count = parsed.Count
	}
	if count < 0 {
		count = 0
	}
	return offset, count
}

// resolveIncludes follows every `_include`/`_revinclude` directive for page,
// scanning only the directly-addressed types (spec.md §4.5); `:iterate` is
// accepted but not chased beyond one hop, per DESIGN.md.
func (s *VersionedStore) resolveIncludes(resourceType string, page []*resource.Instance, includes []search.IncludeDirective) []*resource.Instance {
	if len(includes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(page))
	for _, inst := range page {
		seen[inst.ResourceType+"/"+inst.ID] = true
	}
	var out []*resource.Instance
	add := func(inst *resource.Instance) {
		key := inst.ResourceType + "/" + inst.ID
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, inst)
	}

	for _, d := range includes {
		sourceType := d.SourceType
		if sourceType == "" || sourceType == "*" {
			sourceType = resourceType
		}
		if d.Reverse {
			s.resolveRevInclude(sourceType, d, page, add)
			continue
		}
		if sourceType != resourceType {
			continue
		}
		def, ok := s.registry.Lookup(sourceType, d.SearchParam)
		if !ok {
			continue
		}
		for _, inst := range page {
			for _, ref := range search.ExtractReferenceStrings(inst.JSON, def) {
				seg := search.ParseReferenceValue(ref)
				targetType := seg.ResourceType
				if d.TargetType != "" {
					targetType = d.TargetType
				}
				if targetType == "" || seg.ID == "" {
					continue
				}
				if target, ok := s.TryInstanceRead(targetType, seg.ID); ok {
					add(target)
				}
			}
		}
	}
	return out
}

// resolveRevInclude implements `_revinclude`: d.SourceType names the type
// whose instances reference the page's resources through d.SearchParam.
func (s *VersionedStore) resolveRevInclude(sourceType string, d search.IncludeDirective, page []*resource.Instance, add func(*resource.Instance)) {
	st, err := s.storeFor(sourceType)
	if err != nil {
		return
	}
	def, ok := s.registry.Lookup(sourceType, d.SearchParam)
	if !ok {
		return
	}
	for _, candidate := range st.Values() {
		for _, ref := range search.ExtractReferenceStrings(candidate.JSON, def) {
			seg := search.ParseReferenceValue(ref)
			for _, target := range page {
				if search.ReferenceMatches(ref, seg.ResourceType, search.SegmentedReference{ResourceType: target.ResourceType, ID: target.ID}, "") {
					add(candidate)
				}
			}
		}
	}
}

func buildSearchsetBundle(total int, matches, includes []*resource.Instance, summary string) []byte {
	b := bundle{ResourceType: "Bundle", Type: "searchset", Total: intPtr(total)}
	if summary != "count" {
		for _, inst := range matches {
			b.Entry = append(b.Entry, bundleEntry{
				FullURL:  inst.Location(),
				Resource: json.RawMessage(inst.JSON),
				Search:   &bundleEntrySearch{Mode: "match"},
			})
		}
		for _, inst := range includes {
			b.Entry = append(b.Entry, bundleEntry{
				FullURL:  inst.Location(),
				Resource: json.RawMessage(inst.JSON),
				Search:   &bundleEntrySearch{Mode: "include"},
			})
		}
	}
	data, _ := json.Marshal(b)
	return data
}

// TypeSearch implements spec.md §4.5's search-type interaction.
func (s *VersionedStore) TypeSearch(ctx context.Context, resourceType, queryString, summary string) Response {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.typeSearchLocked(ctx, resourceType, queryString, summary)
}

// typeSearchLocked is TypeSearch's body, run either under the public
// method's own s.txMu.RLock or directly by a transaction-mode Bundle entry
// that already holds s.txMu.Lock for the whole entry loop — see
// instanceCreateLocked's doc comment in instance_ops.go.
func (s *VersionedStore) typeSearchLocked(ctx context.Context, resourceType, queryString, summary string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	parsed, err := search.Parse(resourceType, queryString, s.registry)
	if err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing search query"))
	}

	matches, err := s.searchPage(ctx, parsed, st.Values())
	if err != nil {
		return errorResponse(err)
	}

	total := len(matches)
	offset, count := s.pageBounds(parsed)
	page := paginate(matches, offset, count)
	includes := s.resolveIncludes(resourceType, page, parsed.Includes)

	return Response{StatusCode: 200, ResourceOut: buildSearchsetBundle(total, page, includes, summary)}
}

// SystemSearch implements spec.md §4.5's whole-system search, partitioned by
// `_type` when present; otherwise every enabled type is scanned.
func (s *VersionedStore) SystemSearch(ctx context.Context, queryString string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	types := s.EnabledTypes()

	// _type is parsed per-type below since Parse needs a base resourceType to
	// resolve parameter definitions against; a first lightweight parse picks
	// the type filter, discarding its (necessarily empty) Params.
	probe, err := search.Parse("", queryString, s.registry)
	if err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing search query"))
	}
	if len(probe.TypeFilter) > 0 {
		types = intersect(types, probe.TypeFilter)
	}

	var allMatches []*resource.Instance
	s.txMu.RLock()
	for _, t := range types {
		st, err := s.storeFor(t)
		if err != nil {
			continue
		}
		parsed, err := search.Parse(t, queryString, s.registry)
		if err != nil {
			continue
		}
		matches, err := s.searchPage(ctx, parsed, st.Values())
		if err != nil {
			s.txMu.RUnlock()
			return errorResponse(err)
		}
		allMatches = append(allMatches, matches...)
	}
	s.txMu.RUnlock()

	parsed, _ := search.Parse("", queryString, s.registry)
	total := len(allMatches)
	offset, count := s.pageBounds(parsed)
	page := paginate(allMatches, offset, count)

	return Response{StatusCode: 200, ResourceOut: buildSearchsetBundle(total, page, nil, parsed.Summary)}
}

// TypeDelete implements spec.md §4.5: search then delete every match.
func (s *VersionedStore) TypeDelete(ctx context.Context, resourceType, queryString string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	st, err := s.storeFor(resourceType)
	if err != nil {
		return errorResponse(err)
	}
	parsed, err := search.Parse(resourceType, queryString, s.registry)
	if err != nil {
		return errorResponse(storeerr.Wrap(storeerr.KindMalformedInput, err, "parsing search query"))
	}

	s.txMu.RLock()
	matches, err := s.searchPage(ctx, parsed, st.Values())
	s.txMu.RUnlock()
	if err != nil {
		return errorResponse(err)
	}

	s.txMu.RLock()
	defer s.txMu.RUnlock()
	for _, inst := range matches {
		st.Remove(inst.ID)
	}
	return Response{StatusCode: 204, ResourceType: resourceType}
}

// SystemDelete implements spec.md §4.5's whole-system conditional delete.
func (s *VersionedStore) SystemDelete(ctx context.Context, queryString string) Response {
	if err := checkCancelled(ctx); err != nil {
		return errorResponse(err)
	}
	for _, t := range s.EnabledTypes() {
		resp := s.TypeDelete(ctx, t, queryString)
		if resp.StatusCode >= 400 {
			return resp
		}
	}
	return Response{StatusCode: 204}
}

func paginate(matches []*resource.Instance, offset, count int) []*resource.Instance {
	if offset >= len(matches) {
		return nil
	}
	end := offset + count
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end]
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}
