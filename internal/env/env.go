// Package env owns the device visibility variable. The variable is
// process-wide mutable state: a value bound here is inherited by every child
// the process starts afterwards, so callers must serialize writes.
package env

import (
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	VisibleDevices = "CUDA_VISIBLE_DEVICES"
	DeviceOrder    = "CUDA_DEVICE_ORDER"

	// matches NVML and nvidia-smi enumeration
	PCIBusOrder = "PCI_BUS_ID"
)

var ErrUnparseable = errors.New("unparseable device list")

// Binder is the narrow contract around the visibility variable: one write,
// one read.
type Binder interface {
	Set(value string) error
	Lookup() (string, bool)
}

// Process binds the variable in the real process environment.
type Process struct{}

func (Process) Set(value string) error {
	return os.Setenv(VisibleDevices, value)
}

func (Process) Lookup() (string, bool) {
	return os.LookupEnv(VisibleDevices)
}

// Map is an in-memory binder for tests and embedders that manage child
// environments themselves.
type Map struct {
	mu    sync.Mutex
	value string
	set   bool
}

func NewMap(value string) *Map {
	return &Map{value: value, set: true}
}

func (m *Map) Set(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.set = true
	return nil
}

func (m *Map) Lookup() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.set
}

// Format joins ids in the given order with no whitespace.
func Format(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

// Parse is the inverse of Format. The empty string is a valid, empty list.
// Entries that are not non-negative integers (GPU UUIDs, MIG names) make the
// whole value unparseable.
func Parse(value string) ([]int, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return []int{}, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		id, err := strconv.Atoi(item)
		if err != nil || id < 0 {
			return nil, ErrUnparseable
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Visible reports the ids restricted by the binder's current value. ok is
// false when the variable is unset or unparseable, meaning no restriction.
func Visible(b Binder) (ids []int, ok bool) {
	value, set := b.Lookup()
	if !set {
		return nil, false
	}
	ids, err := Parse(value)
	if err != nil {
		return nil, false
	}
	return ids, true
}

// Override returns a copy of environ with key set to value, replacing any
// existing entries for key.
func Override(environ []string, key, value string) []string {
	prefix := key + "="
	result := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		result = append(result, kv)
	}
	return append(result, prefix+value)
}

// Default returns a copy of environ with key set to value only when environ
// does not already carry key.
func Default(environ []string, key, value string) []string {
	prefix := key + "="
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			result := make([]string, len(environ))
			copy(result, environ)
			return result
		}
	}
	return Override(environ, key, value)
}

func Sorted(ids []int) []int {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)
	return sorted
}
