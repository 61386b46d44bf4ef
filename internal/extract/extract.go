// Package extract flattens the nested generation payloads of the upstream API
// into flat per-unit, per-timestamp records.
//
// Payloads group observations under unit sections:
//
//	{"actual_generations_per_unit": [
//	    {"unit": {"eic_code": "...", "name": "..."},
//	     "values": [{"start_date": "...", "end_date": "...", "value": 12}]}
//	]}
//
// The location of the section list and of the unit identifier fields comes
// from the resource table, so the three payload shapes share one code path.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DridrM/renewable-energy-forecast/internal/api"
	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Records flattens payload into one record per observation, each stamped
// with the identifier fields of its unit. A payload that does not hold a list
// of unit sections under the resource key yields an *api.UpstreamError.
func Records(kind resource.Kind, payload []byte) ([]models.GenerationRecord, error) {
	sections, err := unitSections(kind, payload)
	if err != nil {
		return nil, err
	}

	var records []models.GenerationRecord
	for i, section := range sections {
		unit, err := unitOf(kind, section)
		if err != nil {
			return nil, malformed(payload, "unit section %d: %v", i, err)
		}

		values, ok := section[resource.ValuesKey].([]any)
		if !ok {
			return nil, malformed(payload, "unit section %d: %q is not a list", i, resource.ValuesKey)
		}

		for j, v := range values {
			obs, ok := v.(map[string]any)
			if !ok {
				return nil, malformed(payload, "unit section %d value %d is not an object", i, j)
			}
			rec, err := observation(obs)
			if err != nil {
				return nil, malformed(payload, "unit section %d value %d: %v", i, j, err)
			}
			rec.Unit = unit
			records = append(records, rec)
		}
	}

	return records, nil
}

// Units returns the distinct units present in payload, in first-seen order.
func Units(kind resource.Kind, payload []byte) ([]models.Unit, error) {
	sections, err := unitSections(kind, payload)
	if err != nil {
		return nil, err
	}

	var units []models.Unit
	for i, section := range sections {
		unit, err := unitOf(kind, section)
		if err != nil {
			return nil, malformed(payload, "unit section %d: %v", i, err)
		}
		if !containsUnit(units, unit) {
			units = append(units, unit)
		}
	}
	return units, nil
}

func unitSections(kind resource.Kind, payload []byte) ([]map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, malformed(payload, "not a JSON object")
	}

	raw, ok := doc[kind.Name()]
	if !ok {
		return nil, malformed(payload, "missing key %q", kind.Name())
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, malformed(payload, "%q is not a list", kind.Name())
	}

	sections := make([]map[string]any, 0, len(list))
	for i, item := range list {
		section, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(payload, "unit section %d is not an object", i)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func unitOf(kind resource.Kind, section map[string]any) (models.Unit, error) {
	unit := make(models.Unit, len(kind.UnitFields()))
	for _, field := range kind.UnitFields() {
		v, err := lookup(section, field.Path)
		if err != nil {
			return nil, err
		}
		unit[field.Column] = v
	}
	return unit, nil
}

func lookup(obj map[string]any, path []string) (string, error) {
	var cur any = obj
	for i, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%v is not an object", path[:i])
		}
		cur, ok = m[key]
		if !ok {
			return "", fmt.Errorf("missing field %v", path[:i+1])
		}
	}

	switch v := cur.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("field %v is not a string", path)
	}
}

func observation(obs map[string]any) (models.GenerationRecord, error) {
	var rec models.GenerationRecord
	var err error

	if rec.StartDate, err = timeField(obs, "start_date", true); err != nil {
		return rec, err
	}
	if rec.EndDate, err = timeField(obs, "end_date", true); err != nil {
		return rec, err
	}
	if rec.UpdatedDate, err = timeField(obs, "updated_date", false); err != nil {
		return rec, err
	}

	switch v := obs["value"].(type) {
	case float64:
		rec.Value = v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return rec, fmt.Errorf("value %q is not a number", v)
		}
		rec.Value = f
	default:
		return rec, fmt.Errorf("missing numeric value")
	}

	return rec, nil
}

func timeField(obs map[string]any, key string, required bool) (time.Time, error) {
	raw, ok := obs[key]
	if !ok || raw == nil {
		if required {
			return time.Time{}, fmt.Errorf("missing %s", key)
		}
		return time.Time{}, nil
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is not a string", key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t, nil
}

func containsUnit(units []models.Unit, u models.Unit) bool {
	for _, existing := range units {
		if existing.Equal(u) {
			return true
		}
	}
	return false
}

func malformed(payload []byte, format string, args ...any) error {
	return &api.UpstreamError{
		Reason:  fmt.Sprintf(format, args...),
		Payload: payload,
	}
}
