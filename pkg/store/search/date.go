package search

import (
	"fmt"
	"time"
)

// datePrecision enumerates the resolutions a FHIR date/dateTime/instant literal
// may be given at, from coarsest to finest.
type datePrecision int

const (
	precisionYear datePrecision = iota
	precisionMonth
	precisionDay
	precisionHour
	precisionMinute
	precisionSecond
)

// dateWindow is an inclusive-start/exclusive-end instant interval, the
// representation spec.md §4.3 calls `[start, end)`.
type dateWindow struct {
	Start time.Time
	End   time.Time
}

// farPast and farFuture bound an open Period endpoint so comparisons against
// an unbounded Period.start or Period.end behave as "always before"/"always after".
var (
	farPast   = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
)

// parseDateLiteral parses a FHIR date/dateTime/instant literal (with its
// precision determined by how many components are present) into the
// half-open UTC window it denotes. Accepts an optional leading two-letter
// comparison prefix already stripped by the caller.
func parseDateLiteral(lit string) (dateWindow, error) {
	layouts := []struct {
		layout    string
		precision datePrecision
	}{
		{"2006", precisionYear},
		{"2006-01", precisionMonth},
		{"2006-01-02", precisionDay},
		{"2006-01-02T15:04", precisionMinute},
		{"2006-01-02T15:04:05", precisionSecond},
		{"2006-01-02T15:04:05Z07:00", precisionSecond},
		{"2006-01-02T15:04Z07:00", precisionMinute},
	}
	for _, l := range layouts {
		if t, err := time.Parse(l.layout, lit); err == nil {
			return windowFor(t, l.precision), nil
		}
	}
	return dateWindow{}, fmt.Errorf("unrecognized date literal %q", lit)
}

func windowFor(t time.Time, p datePrecision) dateWindow {
	t = t.UTC()
	start := t
	var end time.Time
	switch p {
	case precisionYear:
		start = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)
	case precisionMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	case precisionDay:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	case precisionHour:
		start = t.Truncate(time.Hour)
		end = start.Add(time.Hour)
	case precisionMinute:
		start = t.Truncate(time.Minute)
		end = start.Add(time.Minute)
	default: // precisionSecond
		start = t.Truncate(time.Second)
		end = start.Add(time.Second)
	}
	return dateWindow{Start: start, End: end}
}

// compareDateWindow implements spec.md §4.3's date prefix semantics: the
// query window [qStart, qEnd) is compared against the extracted value's
// window [vStart, vEnd) according to prefix.
func compareDateWindow(prefix Prefix, value, query dateWindow) bool {
	switch prefix {
	case PrefixEq:
		return !value.Start.Before(query.Start) && !value.End.After(query.End)
	case PrefixNe:
		return value.Start.Before(query.Start) || value.End.After(query.End)
	case PrefixGt:
		return value.Start.After(query.End) || value.Start.Equal(query.End)
	case PrefixLt:
		return value.End.Before(query.Start) || value.End.Equal(query.Start)
	case PrefixGe:
		return !value.Start.Before(query.Start)
	case PrefixLe:
		return !value.End.After(query.End)
	case PrefixSa:
		return !value.Start.Before(query.End)
	case PrefixEb:
		return !value.End.After(query.Start)
	case PrefixAp:
		delta := 24 * time.Hour
		return absDuration(value.Start.Sub(query.Start)) <= delta || absDuration(value.End.Sub(query.End)) <= delta
	default:
		return false
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
