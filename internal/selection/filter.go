package selection

import (
	"strings"

	"gpuselect/internal/device"
)

func Filter(records []device.Record, req Request) []device.Record {
	eligible := make([]device.Record, 0, len(records))
	for _, r := range records {
		if Matches(req, r) {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// Matches reports whether r passes the request's filters. A Selector
// overrides the threshold and name filters.
func Matches(req Request, r device.Record) bool {
	if req.Selector != nil {
		return req.Selector(r)
	}
	if r.Util > req.Util || r.MemUtil > req.MemUtil || r.Processes > req.Processes {
		return false
	}
	return req.Name == "" || strings.Contains(r.Name, req.Name)
}
