package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenCountUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ScreenCount
		wantErr bool
	}{
		{name: "number", input: `3`, want: 3},
		{name: "string", input: `"2"`, want: 2},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage", input: `"two"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ScreenCount
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeMonitors(t *testing.T) {
	in := []MonitorDescriptor{
		{Address: "A1", User: "alice", ScreenCount: 2},
		{Address: "", User: "ghost"},
		{Address: "B2", User: "bob", ScreenCount: 0},
		{Address: "A1", User: "impostor", ScreenCount: 5},
	}

	out := NormalizeMonitors(in, 0)

	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].User)
	assert.Equal(t, ScreenCount(2), out[0].ScreenCount)
	assert.Equal(t, "B2", out[1].Address)
	assert.Equal(t, 1, out[1].Screens())
}

func TestNormalizeMonitorsClampsScreenCount(t *testing.T) {
	in := []MonitorDescriptor{
		{Address: "A1", ScreenCount: 50000000},
		{Address: "B2", ScreenCount: 3},
		{Address: "C3", ScreenCount: -4},
	}

	out := NormalizeMonitors(in, 4)
	require.Len(t, out, 3)
	assert.Equal(t, ScreenCount(4), out[0].ScreenCount)
	assert.Equal(t, ScreenCount(3), out[1].ScreenCount)
	assert.Equal(t, ScreenCount(1), out[2].ScreenCount)

	out = NormalizeMonitors(in, 0)
	assert.Equal(t, ScreenCount(DefaultMaxScreens), out[0].ScreenCount)
}

func TestMonitorListFind(t *testing.T) {
	list := MonitorList{
		{Address: "A1", User: "alice"},
		{Address: "B2", User: "bob"},
	}

	mon, ok := list.Find("B2")
	require.True(t, ok)
	assert.Equal(t, "bob", mon.User)

	_, ok = list.Find("C3")
	assert.False(t, ok)
}

func TestSelectionCopiesDescriptor(t *testing.T) {
	list := MonitorList{{Address: "A1", User: "alice"}}
	mon, _ := list.Find("A1")
	sel := SelectionOf(mon)

	list[0].User = "mallory"

	assert.Equal(t, "alice", sel.Monitor.User)
	assert.Equal(t, "A1", sel.Address())
	assert.True(t, Selection{}.IsNone())
}

func TestLabel(t *testing.T) {
	mon := MonitorDescriptor{Address: "A1", User: "alice", Host: "desk1"}
	assert.Equal(t, "alice (desk1 - A1)", mon.Label())
}
