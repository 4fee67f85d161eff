package search

import (
	"strings"

	"github.com/fhirstore/gofhir/pkg/fhirpath/types"
)

// matchDate implements spec.md §4.3's Date rule: the extracted element
// (itself a date/dateTime/instant/Period literal) is converted to its own
// [start,end) window and compared to every query window by its prefix (OR
// across query values).
func matchDate(el types.Value, p *ParsedSearchParameter) bool {
	valueWindow, ok := elementDateWindow(el)
	if !ok {
		return false
	}
	for i := range p.ValueDateStarts {
		if p.IgnoredValueFlags[i] {
			continue
		}
		query := dateWindow{Start: p.ValueDateStarts[i], End: p.ValueDateEnds[i]}
		prefix := PrefixEq
		if i < len(p.Prefixes) {
			prefix = p.Prefixes[i]
		}
		if compareDateWindow(prefix, valueWindow, query) {
			return true
		}
	}
	return false
}

// elementDateWindow converts a FHIRPath value representing a date, dateTime,
// instant, or Period into its [start,end) window.
func elementDateWindow(el types.Value) (dateWindow, bool) {
	switch v := el.(type) {
	case types.String:
		win, err := parseDateLiteral(v.Value())
		if err != nil {
			return dateWindow{}, false
		}
		return win, true
	case *types.ObjectValue:
		if strings.EqualFold(v.Type(), "Period") {
			return periodWindow(v)
		}
	}
	// Fall back to the value's string form for FHIRPath Date/DateTime/Time types.
	lit := el.String()
	lit = strings.Trim(lit, "@\"")
	win, err := parseDateLiteral(lit)
	if err != nil {
		return dateWindow{}, false
	}
	return win, true
}

func periodWindow(o *types.ObjectValue) (dateWindow, bool) {
	start, hasStart := fieldString(o, "start")
	end, hasEnd := fieldString(o, "end")
	var win dateWindow
	if hasStart {
		if w, err := parseDateLiteral(start); err == nil {
			win.Start = w.Start
		}
	}
	if hasEnd {
		if w, err := parseDateLiteral(end); err == nil {
			win.End = w.End
		} else {
			win.End = farFuture
		}
	} else {
		win.End = farFuture
	}
	if !hasStart {
		win.Start = farPast
	}
	return win, true
}
