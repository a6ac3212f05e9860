package selection

import (
	"gpuselect/internal/device"
	"gpuselect/internal/env"
)

// Scope keeps the records whose id is in devices. An empty devices list
// keeps everything; ids missing from the snapshot are ignored.
func Scope(records []device.Record, devices []int) []device.Record {
	if len(devices) == 0 {
		return records
	}
	allowed := make(map[int]struct{}, len(devices))
	for _, id := range devices {
		allowed[id] = struct{}{}
	}
	return keep(records, allowed)
}

// ScopeVisible restricts records to the binder's current visibility list.
// An unset or unparseable value leaves the snapshot untouched; a set but
// empty value hides every device.
func ScopeVisible(records []device.Record, b env.Binder) []device.Record {
	ids, ok := env.Visible(b)
	if !ok {
		return records
	}
	allowed := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return keep(records, allowed)
}

func keep(records []device.Record, allowed map[int]struct{}) []device.Record {
	result := make([]device.Record, 0, len(allowed))
	for _, r := range records {
		if _, ok := allowed[r.ID]; ok {
			result = append(result, r)
		}
	}
	return result
}
