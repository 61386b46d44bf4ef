// Package daterange validates requested date ranges and slices them into
// windows the upstream API accepts in a single call.
package daterange

import (
	"fmt"
	"time"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

const (
	// Layout is the user facing date format, also used in file names.
	Layout = "2006-01-02 15:04:05"
	// DayLayout is accepted as a shorthand for midnight.
	DayLayout = "2006-01-02"

	apiLayout = "2006-01-02T15:04:05-07:00"
)

// DateRange is a closed interval [Start, End]. The zero value is the
// unresolved range of a default call, for which the API picks the period.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsDefault reports whether r is the default-call marker.
func (r DateRange) IsDefault() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Duration returns End - Start.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// String implements fmt.Stringer.
func (r DateRange) String() string {
	if r.IsDefault() {
		return "default"
	}
	return fmt.Sprintf("%s/%s", r.Start.Format(Layout), r.End.Format(Layout))
}

// Reason explains why a requested range degraded to a default call.
type Reason string

const (
	// Kept means the requested range is used as is.
	Kept Reason = ""
	// MissingBound means at least one of the dates was not provided.
	MissingBound Reason = "missing start or end date"
	// OutOfLimits means the range starts before the resource history or ends in the future.
	OutOfLimits Reason = "start date and end date exceed limit dates"
	// Inverted means the end date is not after the start date.
	Inverted Reason = "end date is not after the start date"
)

// Resolve validates a requested range for a resource. Invalid or incomplete
// ranges are not errors: they resolve to the default-call marker together
// with the reason, so the caller can warn and carry on. Zero times are absent.
func Resolve(kind resource.Kind, start, end, now time.Time) (DateRange, Reason) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, MissingBound
	}
	if start.Before(kind.Earliest()) || end.After(now) {
		return DateRange{}, OutOfLimits
	}
	if !end.After(start) {
		return DateRange{}, Inverted
	}
	return DateRange{Start: start, End: end}, Kept
}

// Slice splits r into chronological windows no longer than the resource's
// maximum span. Every window after the first starts one sampling step after
// the end of the previous one, so concatenated results never hold the same
// timestamp twice. A trailing window is emitted whenever its shifted start
// does not pass r.End, which may leave a single-sample window at the end.
// The default marker slices into itself.
func Slice(kind resource.Kind, r DateRange) []DateRange {
	if r.IsDefault() {
		return []DateRange{{}}
	}

	span := kind.MaxSpan()
	step := kind.Step()

	n := int(r.Duration() / span)
	if n == 0 {
		return []DateRange{r}
	}

	windows := make([]DateRange, 0, n+1)
	for i := 0; i < n; i++ {
		start := r.Start.Add(time.Duration(i) * span)
		if i > 0 {
			start = start.Add(step)
		}
		windows = append(windows, DateRange{
			Start: start,
			End:   r.Start.Add(time.Duration(i+1) * span),
		})
	}

	tail := r.Start.Add(time.Duration(n) * span).Add(step)
	if !tail.After(r.End) {
		windows = append(windows, DateRange{Start: tail, End: r.End})
	}

	return windows
}

// Today returns the window a default call covers on the day of now.
func Today(kind resource.Kind, now time.Time) DateRange {
	n := now.In(resource.APIZone)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, resource.APIZone)
	return DateRange{Start: start, End: start.Add(kind.DefaultSpan())}
}

// ParseTime parses a date in Layout or DayLayout. An empty string yields the zero time.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = resource.APIZone
	}
	if t, err := time.ParseInLocation(Layout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: expected %q or %q", s, Layout, DayLayout)
	}
	return t, nil
}

// APIFormat renders t the way the upstream API expects its date parameters.
func APIFormat(t time.Time) string {
	return t.In(resource.APIZone).Format(apiLayout)
}
