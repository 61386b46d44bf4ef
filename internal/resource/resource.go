// Package resource describes the generation resources served by the grid-operator API.
//
// Every per-resource constant (API limits, sampling step, JSON key paths, file
// naming, applicable filters) lives in a single table so the rest of the code
// never switches on the resource number.
package resource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the upstream generation resources.
type Kind int

const (
	// ProductionType is the aggregate generation per production type (hourly).
	ProductionType Kind = 1
	// Unit is the generation per physical production unit (hourly).
	Unit Kind = 2
	// Mix15Min is the generation mix per production type and subtype (15 minutes).
	Mix15Min Kind = 3
)

// APIZone is the fixed offset the upstream API expresses its dates in.
var APIZone = time.FixedZone("CET", 3600)

// ValuesKey is the key holding the observations of a unit section.
const ValuesKey = "values"

// Column names shared by records, filters and the ledger.
const (
	ColEICCode           = "eic_code"
	ColUnitName          = "unit_name"
	ColProductionType    = "production_type"
	ColProductionSubtype = "production_subtype"
)

// FieldPath locates a unit identifier inside a unit section of a response.
type FieldPath struct {
	// Column is the flat record column the value is stored under.
	Column string
	// Path is the sequence of JSON object keys, starting at the unit section.
	Path []string
}

// Filter restricts a request to a subset of units.
type Filter struct {
	EICCode           string
	ProductionType    string
	ProductionSubtype string
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return f.EICCode == "" && f.ProductionType == "" && f.ProductionSubtype == ""
}

// Get returns the filter value stored under a column name.
func (f Filter) Get(column string) string {
	switch column {
	case ColEICCode:
		return f.EICCode
	case ColProductionType:
		return f.ProductionType
	case ColProductionSubtype:
		return f.ProductionSubtype
	}
	return ""
}

type filterField struct {
	column string
	param  string
}

type properties struct {
	name        string
	maxSpan     time.Duration
	step        time.Duration
	earliest    time.Time
	defaultSpan time.Duration
	minInterval time.Duration
	designation string
	unitFields  []FieldPath
	filters     []filterField
}

const day = 24 * time.Hour

var kinds = map[Kind]properties{
	ProductionType: {
		name:        "actual_generations_per_production_type",
		maxSpan:     155 * day,
		step:        time.Hour,
		earliest:    time.Date(2014, 12, 15, 0, 0, 0, 0, APIZone),
		defaultSpan: 23 * time.Hour,
		minInterval: 15 * time.Minute,
		designation: "production_type",
		unitFields: []FieldPath{
			{Column: ColProductionType, Path: []string{"production_type"}},
		},
		filters: []filterField{
			{column: ColProductionType, param: "production_type"},
		},
	},
	Unit: {
		name:        "actual_generations_per_unit",
		maxSpan:     7 * day,
		step:        time.Hour,
		earliest:    time.Date(2011, 12, 13, 0, 0, 0, 0, APIZone),
		defaultSpan: 23 * time.Hour,
		minInterval: time.Hour,
		designation: "unit",
		unitFields: []FieldPath{
			{Column: ColEICCode, Path: []string{"unit", "eic_code"}},
			{Column: ColUnitName, Path: []string{"unit", "name"}},
		},
		filters: []filterField{
			{column: ColEICCode, param: "unit_eic_code"},
		},
	},
	Mix15Min: {
		name:        "generation_mix_15min_time_scale",
		maxSpan:     14 * day,
		step:        15 * time.Minute,
		earliest:    time.Date(2017, 1, 1, 0, 0, 0, 0, APIZone),
		defaultSpan: 23*time.Hour + 45*time.Minute,
		minInterval: 15 * time.Minute,
		designation: "production_type_&_subtype",
		unitFields: []FieldPath{
			{Column: ColProductionType, Path: []string{"production_type"}},
			{Column: ColProductionSubtype, Path: []string{"production_subtype"}},
		},
		filters: []filterField{
			{column: ColProductionType, param: "production_type"},
			{column: ColProductionSubtype, param: "production_subtype"},
		},
	},
}

// All returns every known kind in ascending order.
func All() []Kind {
	return []Kind{ProductionType, Unit, Mix15Min}
}

// Parse resolves a kind from its number ("2") or its resource name.
func Parse(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		k := Kind(n)
		if !k.Valid() {
			return 0, fmt.Errorf("unknown resource kind %d", n)
		}
		return k, nil
	}
	for _, k := range All() {
		if kinds[k].name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Name returns the API resource name, also used as the file name prefix.
func (k Kind) Name() string { return kinds[k].name }

// String implements fmt.Stringer.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return k.Name()
}

// MaxSpan is the longest interval the API accepts in a single call.
func (k Kind) MaxSpan() time.Duration { return kinds[k].maxSpan }

// Step is the sampling interval of one data point.
func (k Kind) Step() time.Duration { return kinds[k].step }

// Earliest is the first date the API holds data for.
func (k Kind) Earliest() time.Time { return kinds[k].earliest }

// DefaultSpan is the length of the window the API returns for a call without dates.
func (k Kind) DefaultSpan() time.Duration { return kinds[k].defaultSpan }

// MinInterval is the default minimum delay between two calls to the resource.
func (k Kind) MinInterval() time.Duration { return kinds[k].minInterval }

// Designation names the units of the resource in units-name file names.
func (k Kind) Designation() string { return kinds[k].designation }

// UnitFields returns the key paths of the unit identifier fields.
func (k Kind) UnitFields() []FieldPath { return kinds[k].unitFields }

// UnitColumns returns the unit identifier column names in order.
func (k Kind) UnitColumns() []string {
	fields := kinds[k].unitFields
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
	}
	return cols
}

// FilterColumns returns the filter columns that apply to the resource.
func (k Kind) FilterColumns() []string {
	fields := kinds[k].filters
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// Canonical keeps the filter fields that apply to k and returns the columns
// of the fields that were set but dropped.
func (k Kind) Canonical(f Filter) (Filter, []string) {
	var out Filter
	applies := make(map[string]bool)
	for _, ff := range kinds[k].filters {
		applies[ff.column] = true
	}

	var dropped []string
	for _, col := range []string{ColEICCode, ColProductionType, ColProductionSubtype} {
		v := f.Get(col)
		if v == "" {
			continue
		}
		if !applies[col] {
			dropped = append(dropped, col)
			continue
		}
		switch col {
		case ColEICCode:
			out.EICCode = v
		case ColProductionType:
			out.ProductionType = v
		case ColProductionSubtype:
			out.ProductionSubtype = v
		}
	}
	return out, dropped
}

// FilterValues returns the set filter values applicable to k, in table order.
func (k Kind) FilterValues(f Filter) []string {
	var values []string
	for _, ff := range kinds[k].filters {
		if v := f.Get(ff.column); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Params converts the applicable filter fields into upstream query parameters.
func (k Kind) Params(f Filter) url.Values {
	params := url.Values{}
	for _, ff := range kinds[k].filters {
		if v := f.Get(ff.column); v != "" {
			params.Set(ff.param, v)
		}
	}
	return params
}
