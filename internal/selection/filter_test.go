package selection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpuselect/internal/device"
)

func TestMatchesThresholds(t *testing.T) {
	req := Request{Count: 1, Util: 10, MemUtil: 20, Processes: 1}

	tests := []struct {
		name   string
		record device.Record
		want   bool
	}{
		{"idle", device.Record{}, true},
		{"at bounds", device.Record{Util: 10, MemUtil: 20, Processes: 1}, true},
		{"util above", device.Record{Util: 11}, false},
		{"mem util above", device.Record{MemUtil: 21}, false},
		{"processes above", device.Record{Processes: 2}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(req, tt.record), tt.name)
	}
}

func TestMatchesName(t *testing.T) {
	r := device.Record{Name: gpuName3090}

	assert.True(t, Matches(Request{Name: "3090"}, r))
	assert.True(t, Matches(Request{Name: gpuName3090}, r))
	assert.False(t, Matches(Request{Name: "4090"}, r))
	assert.False(t, Matches(Request{Name: "geforce"}, r))
}

func TestScope(t *testing.T) {
	snapshot := sampleSnapshot()

	assert.Len(t, Scope(snapshot, nil), 4)
	assert.Equal(t, []int{1, 3}, device.IDs(Scope(snapshot, []int{3, 1, 9})))
	assert.Empty(t, Scope(snapshot, []int{9}))
}

func TestPickUniform(t *testing.T) {
	eligible := []device.Record{{ID: 0}, {ID: 1}, {ID: 2}, {ID: 3}}
	rng := rand.New(rand.NewSource(7))

	counts := make(map[int]int)
	const rounds = 4000
	for i := 0; i < rounds; i++ {
		ids, err := Pick(rng, eligible, 2)
		require.NoError(t, err)
		require.Len(t, ids, 2)
		require.NotEqual(t, ids[0], ids[1])
		for _, id := range ids {
			counts[id]++
		}
	}

	// each id expected rounds/2 times
	for id := 0; id < 4; id++ {
		assert.InDelta(t, rounds/2, counts[id], rounds/10, "id %d", id)
	}
}

func TestPickInsufficient(t *testing.T) {
	ids, err := Pick(rand.New(rand.NewSource(1)), []device.Record{{ID: 0}}, 2)
	assert.Nil(t, ids)
	assert.ErrorIs(t, err, ErrInsufficientDevices)
}

func TestFilterUnknownLoad(t *testing.T) {
	unknown := device.Record{ID: 0, Name: "NVIDIA A100 MIG", Util: device.UnknownUtil, MemUtil: device.UnknownUtil, Processes: device.UnknownProcesses}
	records := []device.Record{unknown, {ID: 1, Name: gpuName3090}}

	assert.Equal(t, []int{1}, device.IDs(Filter(records, NewRequest())))

	lenient := Request{Count: 1, Util: 100, MemUtil: 100, Processes: 64}
	assert.Equal(t, []int{1}, device.IDs(Filter(records, lenient)))

	bySelector := Request{Count: 1, Selector: func(r device.Record) bool { return r.Name == "NVIDIA A100 MIG" }}
	assert.Equal(t, []int{0}, device.IDs(Filter(records, bySelector)))
}
