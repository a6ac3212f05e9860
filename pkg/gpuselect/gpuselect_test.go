package gpuselect_test

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpuselect/internal/device"
	"gpuselect/internal/env"
	"gpuselect/pkg/gpuselect"
)

// device 0 idle, 1 busy, 2 idle A6000, 3 idle with one process
var fourGPUs = device.Static{
	{ID: 0, Name: "X"},
	{ID: 1, Name: "X", Util: 50},
	{ID: 2, Name: "A6000"},
	{ID: 3, Name: "X", Processes: 1},
}

func selectWith(t *testing.T, opts ...gpuselect.Option) (string, *env.Map, error) {
	t.Helper()
	binder := &env.Map{}
	opts = append([]gpuselect.Option{
		gpuselect.WithProvider(fourGPUs),
		gpuselect.WithBinder(binder),
		gpuselect.WithRand(rand.New(rand.NewSource(3))),
	}, opts...)
	value, err := gpuselect.Select(opts...)
	return value, binder, err
}

func sortedIDs(t *testing.T, value string) []int {
	t.Helper()
	ids, err := env.Parse(value)
	require.NoError(t, err)
	return env.Sorted(ids)
}

func TestSelectDefaults(t *testing.T) {
	value, binder, err := selectWith(t)
	require.NoError(t, err)
	assert.Contains(t, []string{"0", "2"}, value)

	bound, _ := binder.Lookup()
	assert.Equal(t, value, bound)
}

func TestSelectName(t *testing.T) {
	value, _, err := selectWith(t, gpuselect.Name("A6000"))
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestSelectCountTwo(t *testing.T) {
	value, _, err := selectWith(t, gpuselect.Count(2))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, sortedIDs(t, value))
}

func TestSelectCountFour(t *testing.T) {
	value, binder, err := selectWith(t, gpuselect.Count(4))
	assert.ErrorIs(t, err, gpuselect.ErrInsufficientDevices)
	assert.Empty(t, value)

	var insufficient *gpuselect.InsufficientDevicesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	_, bound := binder.Lookup()
	assert.False(t, bound)
}

func TestSelectCountFourSilent(t *testing.T) {
	value, binder, err := selectWith(t, gpuselect.Count(4), gpuselect.Silent(true))
	require.NoError(t, err)
	assert.Equal(t, "", value)

	bound, ok := binder.Lookup()
	assert.True(t, ok)
	assert.Equal(t, "", bound)
}

func TestSelectDevicesAllIneligible(t *testing.T) {
	_, _, err := selectWith(t, gpuselect.Devices(1, 3))
	assert.ErrorIs(t, err, gpuselect.ErrInsufficientDevices)

	value, _, err := selectWith(t, gpuselect.Devices(1, 3), gpuselect.Silent(true))
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestSelectSelectorOverridesFilters(t *testing.T) {
	value, _, err := selectWith(t,
		gpuselect.Name("A6000"),
		gpuselect.Processes(0),
		gpuselect.WithSelector(func(d gpuselect.Device) bool { return d.Processes == 1 }),
	)
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}

func TestSelectThresholds(t *testing.T) {
	value, _, err := selectWith(t, gpuselect.Count(4), gpuselect.Util(50), gpuselect.MemUtil(0), gpuselect.Processes(1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, sortedIDs(t, value))
}

func TestSelectInvalidCount(t *testing.T) {
	_, _, err := selectWith(t, gpuselect.Count(0))
	assert.ErrorIs(t, err, gpuselect.ErrInvalidRequest)
}

func TestSelectProcessEnvironment(t *testing.T) {
	t.Setenv(gpuselect.VisibleDevicesEnv, "9")

	value, err := gpuselect.Select(gpuselect.WithProvider(fourGPUs), gpuselect.Name("A6000"))
	require.NoError(t, err)
	assert.Equal(t, "2", value)
	assert.Equal(t, "2", os.Getenv(gpuselect.VisibleDevicesEnv))
}

func TestStatus(t *testing.T) {
	t.Setenv(gpuselect.VisibleDevicesEnv, "3,0")

	devices, err := gpuselect.Status(true, gpuselect.WithProvider(fourGPUs))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, 0, devices[0].ID)
	assert.Equal(t, 3, devices[1].ID)

	devices, err = gpuselect.Status(false, gpuselect.WithProvider(fourGPUs))
	require.NoError(t, err)
	assert.Len(t, devices, 4)
}

func TestStatusQueryError(t *testing.T) {
	_, err := gpuselect.Status(false, gpuselect.WithProvider(device.Static{}))
	assert.ErrorIs(t, err, gpuselect.ErrQueryFailed)
}
