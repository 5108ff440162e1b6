package slots

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two half-open ranges share any instant.
// Touching intervals ([9,10) and [10,11)) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Slice cuts window into consecutive sub-intervals of exactly duration,
// dropping any trailing remainder shorter than duration.
func Slice(window Interval, duration time.Duration) []Interval {
	if duration <= 0 || window.Duration() < duration {
		return nil
	}
	out := make([]Interval, 0, int(window.Duration()/duration))
	for cursor := window.Start; !cursor.Add(duration).After(window.End); cursor = cursor.Add(duration) {
		out = append(out, Interval{Start: cursor, End: cursor.Add(duration)})
	}
	return out
}
