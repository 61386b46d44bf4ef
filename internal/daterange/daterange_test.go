package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, resource.APIZone)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := ParseTime(s, nil)
	require.NoError(t, err)
	return ts
}

// samples lists every sampling timestamp inside r.
func samples(r DateRange, step time.Duration) []time.Time {
	var out []time.Time
	for ts := r.Start; !ts.After(r.End); ts = ts.Add(step) {
		out = append(out, ts)
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		kind   resource.Kind
		start  string
		end    string
		reason Reason
	}{
		{name: "valid", kind: resource.ProductionType, start: "2020-01-01 00:00:00", end: "2020-02-01 00:00:00", reason: Kept},
		{name: "missing end", kind: resource.Unit, start: "2020-01-01 00:00:00", reason: MissingBound},
		{name: "missing both", kind: resource.Unit, reason: MissingBound},
		{name: "before history", kind: resource.Mix15Min, start: "2016-12-31 00:00:00", end: "2017-01-05 00:00:00", reason: OutOfLimits},
		{name: "in the future", kind: resource.ProductionType, start: "2026-10-01 00:00:00", end: "2030-01-01 00:00:00", reason: OutOfLimits},
		{name: "end before start", kind: resource.ProductionType, start: "2030-01-01 00:00:00", end: "2020-01-01 00:00:00", reason: Inverted},
		{name: "empty range", kind: resource.Unit, start: "2020-01-01 00:00:00", end: "2020-01-01 00:00:00", reason: Inverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reason := Resolve(tt.kind, mustParse(t, tt.start), mustParse(t, tt.end), now)
			assert.Equal(t, tt.reason, reason)
			if tt.reason == Kept {
				assert.False(t, r.IsDefault())
				assert.Equal(t, mustParse(t, tt.start), r.Start)
			} else {
				assert.True(t, r.IsDefault())
			}
		})
	}
}

func TestResolveInvertedForEveryKind(t *testing.T) {
	for _, kind := range resource.All() {
		r, reason := Resolve(kind, mustParse(t, "2030-01-01 00:00:00"), mustParse(t, "2020-01-01 00:00:00"), time.Now())
		assert.True(t, r.IsDefault(), kind.Name())
		assert.NotEqual(t, Kept, reason)
	}
}

func TestSliceSingleWindow(t *testing.T) {
	tests := []struct {
		kind  resource.Kind
		start string
		end   string
	}{
		{kind: resource.ProductionType, start: "2020-01-01 00:00:00", end: "2020-03-01 00:00:00"},
		{kind: resource.Unit, start: "2020-01-01 00:00:00", end: "2020-01-08 00:00:00"},
		{kind: resource.Mix15Min, start: "2020-01-01 00:00:00", end: "2020-01-01 06:15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Name(), func(t *testing.T) {
			r := DateRange{Start: mustParse(t, tt.start), End: mustParse(t, tt.end)}
			got := Slice(tt.kind, r)
			require.Len(t, got, 1)
			assert.Equal(t, r, got[0])
		})
	}
}

func TestSliceShiftsWindows(t *testing.T) {
	r := DateRange{Start: mustParse(t, "2020-01-01 00:00:00"), End: mustParse(t, "2020-01-20 00:00:00")}
	got := Slice(resource.Unit, r)

	require.Len(t, got, 3)
	assert.Equal(t, DateRange{Start: mustParse(t, "2020-01-01 00:00:00"), End: mustParse(t, "2020-01-08 00:00:00")}, got[0])
	assert.Equal(t, DateRange{Start: mustParse(t, "2020-01-08 01:00:00"), End: mustParse(t, "2020-01-15 00:00:00")}, got[1])
	assert.Equal(t, DateRange{Start: mustParse(t, "2020-01-15 01:00:00"), End: mustParse(t, "2020-01-20 00:00:00")}, got[2])
}

func TestSliceNoTrailingWindowOnExactMultiple(t *testing.T) {
	r := DateRange{Start: mustParse(t, "2020-01-01 00:00:00"), End: mustParse(t, "2020-01-29 00:00:00")}
	got := Slice(resource.Mix15Min, r)

	require.Len(t, got, 2)
	assert.Equal(t, r.End, got[1].End)
	assert.Equal(t, mustParse(t, "2020-01-15 00:15:00"), got[1].Start)
}

func TestSliceKeepsSingleSampleTail(t *testing.T) {
	r := DateRange{Start: mustParse(t, "2024-01-01 00:00:00"), End: mustParse(t, "2024-01-08 01:00:00")}
	got := Slice(resource.Unit, r)

	require.Len(t, got, 2)
	assert.Equal(t, DateRange{Start: mustParse(t, "2024-01-01 00:00:00"), End: mustParse(t, "2024-01-08 00:00:00")}, got[0])
	assert.Equal(t, DateRange{Start: r.End, End: r.End}, got[1])
}

func TestSliceCoverageAndBound(t *testing.T) {
	ranges := []struct {
		kind  resource.Kind
		start string
		end   string
	}{
		{kind: resource.ProductionType, start: "2015-01-01 00:00:00", end: "2016-06-30 17:00:00"},
		{kind: resource.Unit, start: "2019-03-01 00:00:00", end: "2019-05-17 05:00:00"},
		{kind: resource.Unit, start: "2019-03-01 00:00:00", end: "2019-03-15 00:00:00"},
		{kind: resource.Mix15Min, start: "2021-07-03 00:00:00", end: "2021-09-01 23:45:00"},
		{kind: resource.Unit, start: "2024-01-01 00:00:00", end: "2024-01-08 01:00:00"},
		{kind: resource.Mix15Min, start: "2021-07-03 00:00:00", end: "2021-07-31 00:15:00"},
	}

	for _, tt := range ranges {
		t.Run(tt.kind.Name()+" "+tt.start, func(t *testing.T) {
			r := DateRange{Start: mustParse(t, tt.start), End: mustParse(t, tt.end)}
			got := Slice(tt.kind, r)

			seen := make(map[time.Time]bool)
			var covered []time.Time
			for i, w := range got {
				assert.False(t, w.Start.After(w.End), "window %d not ordered", i)
				assert.LessOrEqual(t, w.Duration(), tt.kind.MaxSpan(), "window %d too long", i)
				if i > 0 {
					assert.True(t, w.Start.After(got[i-1].End), "window %d overlaps", i)
				}
				for _, ts := range samples(w, tt.kind.Step()) {
					assert.False(t, seen[ts], "duplicate sample %s", ts)
					seen[ts] = true
					covered = append(covered, ts)
				}
			}

			assert.Equal(t, samples(r, tt.kind.Step()), covered)
			assert.Equal(t, r.Start, got[0].Start)
			assert.Equal(t, r.End, got[len(got)-1].End)
		})
	}
}

func TestSliceDefault(t *testing.T) {
	got := Slice(resource.Unit, DateRange{})
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDefault())
}

func TestToday(t *testing.T) {
	r := Today(resource.Mix15Min, now)
	assert.Equal(t, "2026-10-14 00:00:00", r.Start.Format(Layout))
	assert.Equal(t, "2026-10-14 23:45:00", r.End.Format(Layout))

	r = Today(resource.ProductionType, now)
	assert.Equal(t, "2026-10-14 23:00:00", r.End.Format(Layout))
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2020-05-01", nil)
	require.NoError(t, err)
	assert.Equal(t, "2020-05-01 00:00:00", ts.Format(Layout))

	ts, err = ParseTime("", nil)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = ParseTime("01/05/2020", nil)
	assert.Error(t, err)
}

func TestAPIFormat(t *testing.T) {
	ts := time.Date(2020, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2020-05-01T09:00:00+01:00", APIFormat(ts))
}
