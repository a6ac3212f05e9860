package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "3", Format([]int{3}))
	assert.Equal(t, "2,0", Format([]int{2, 0}))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: []int{}},
		{in: "0", want: []int{0}},
		{in: "0,2", want: []int{0, 2}},
		{in: " 3 , 1 ", want: []int{3, 1}},
		{in: "GPU-8a1b2c3d", wantErr: true},
		{in: "0,,1", wantErr: true},
		{in: "-1", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnparseable, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRoundTripIgnoresOrder(t *testing.T) {
	for _, value := range []string{Format([]int{0, 2}), Format([]int{2, 0})} {
		ids, err := Parse(value)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{0, 2}, ids)
		assert.Equal(t, []int{0, 2}, Sorted(ids))
	}
}

func TestVisible(t *testing.T) {
	_, ok := Visible(&Map{})
	assert.False(t, ok, "unset")

	_, ok = Visible(NewMap("GPU-8a1b2c3d"))
	assert.False(t, ok, "unparseable")

	ids, ok := Visible(NewMap(""))
	assert.True(t, ok)
	assert.Empty(t, ids)

	ids, ok = Visible(NewMap("1,3"))
	assert.True(t, ok)
	assert.Equal(t, []int{1, 3}, ids)
}

func TestProcessBinder(t *testing.T) {
	t.Setenv(VisibleDevices, "7")

	var b Binder = Process{}
	value, ok := b.Lookup()
	require.True(t, ok)
	assert.Equal(t, "7", value)

	require.NoError(t, b.Set("0,2"))
	value, _ = b.Lookup()
	assert.Equal(t, "0,2", value)
}

func TestOverride(t *testing.T) {
	environ := []string{"PATH=/usr/bin", VisibleDevices + "=5", "HOME=/root"}

	got := Override(environ, VisibleDevices, "0,2")
	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/root", VisibleDevices + "=0,2"}, got)
	assert.Equal(t, VisibleDevices+"=5", environ[1], "input untouched")

	got = Override([]string{"PATH=/usr/bin"}, VisibleDevices, "")
	assert.Equal(t, []string{"PATH=/usr/bin", VisibleDevices + "="}, got)
}

func TestDefault(t *testing.T) {
	got := Default([]string{"PATH=/usr/bin"}, DeviceOrder, PCIBusOrder)
	assert.Equal(t, []string{"PATH=/usr/bin", DeviceOrder + "=" + PCIBusOrder}, got)

	got = Default([]string{DeviceOrder + "=FASTEST_FIRST"}, DeviceOrder, PCIBusOrder)
	assert.Equal(t, []string{DeviceOrder + "=FASTEST_FIRST"}, got)
}
