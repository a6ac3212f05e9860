package selection

import (
	"errors"
	"fmt"

	"gpuselect/internal/device"
)

var (
	ErrInsufficientDevices = errors.New("insufficient devices")
	ErrInvalidRequest      = errors.New("invalid request")
)

// Selector is a custom eligibility predicate. When a Request carries one, it
// replaces the Name, Util, MemUtil and Processes filters entirely; Devices
// and Count still apply.
type Selector func(device.Record) bool

type Request struct {
	Count     int
	Name      string // case-sensitive substring, empty matches all
	Util      int    // inclusive upper bounds
	MemUtil   int
	Processes int
	Devices   []int // empty means every device
	Selector  Selector
	Silent    bool
}

// NewRequest returns a request for one fully idle device.
func NewRequest() Request {
	return Request{Count: 1}
}

func (r Request) Validate() error {
	if r.Count < 1 {
		return fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidRequest, r.Count)
	}
	return nil
}

type Result struct {
	IDs   []int
	Value string
}

func (r Result) Empty() bool {
	return len(r.IDs) == 0
}

type InsufficientDevicesError struct {
	Requested int
	Available int
}

func (e *InsufficientDevicesError) Error() string {
	return fmt.Sprintf("%v: requested %d, but only %d eligible", ErrInsufficientDevices, e.Requested, e.Available)
}

func (e *InsufficientDevicesError) Is(target error) bool {
	return target == ErrInsufficientDevices
}
