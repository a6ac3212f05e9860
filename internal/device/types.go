package device

import (
	"errors"
	"fmt"
	"math"
)

var ErrQueryFailed = errors.New("device query failed")

// Load counters a board cannot report (MIG mode, some datacenter parts) are
// recorded as fully busy so threshold filters never mistake them for idle.
const (
	UnknownUtil      = 100
	UnknownProcesses = math.MaxInt32
)

// Record is one accelerator as seen by a single snapshot. Records are never
// cached; every Snapshot call reads the hardware again.
type Record struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Util        int    `json:"util"`        // percentage
	MemUtil     int    `json:"mem_util"`    // percentage
	Processes   int    `json:"processes"`   // active compute processes
	PerfState   int    `json:"perf_state"`  // 0 (highest) to 15
	PowerUsage  int    `json:"power_usage"` // milliwatts
	Temperature int    `json:"temperature"` // celsius
}

type Provider interface {
	// returns the backend name (e.g. "nvml", "smi")
	Name() string

	// reads every enumerable device, in enumeration order
	Snapshot() ([]Record, error)
}

type QueryError struct {
	Provider string
	Err      error
}

func (e *QueryError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%v: %v", ErrQueryFailed, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", ErrQueryFailed, e.Provider, e.Err)
}

func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryFailed, e.Err}
}

func queryError(provider string, format string, args ...any) error {
	return &QueryError{Provider: provider, Err: fmt.Errorf(format, args...)}
}

// PerfState maps a raw performance state to 0-15; anything else,
// including the drivers' "unknown" value, reads as 0.
func PerfState(state int) int {
	if state < 0 || state > 15 {
		return 0
	}
	return state
}

func IDs(records []Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
