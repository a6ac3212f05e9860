package selection

import (
	"math/rand"

	"gpuselect/internal/device"
)

// Pick draws count distinct ids uniformly at random. It never returns a
// partial selection.
func Pick(rng *rand.Rand, eligible []device.Record, count int) ([]int, error) {
	if len(eligible) < count {
		return nil, &InsufficientDevicesError{Requested: count, Available: len(eligible)}
	}

	perm := rng.Perm(len(eligible))
	ids := make([]int, 0, count)
	for _, idx := range perm[:count] {
		ids = append(ids, eligible[idx].ID)
	}
	return ids, nil
}
