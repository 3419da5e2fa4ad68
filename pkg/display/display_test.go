package display

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/syserr"
)

type fakeAPI struct {
	results  map[uint32]int32
	calls    []uint32
	adapters []Device
	monitors map[string][]Device
}

func (f *fakeAPI) SetDisplayConfig(flags uint32) int32 {
	f.calls = append(f.calls, flags)
	return f.results[flags]
}

func (f *fakeAPI) EnumDisplayDevices(parent string, index uint32) (Device, bool) {
	list := f.adapters
	if parent != "" {
		list = f.monitors[parent]
	}
	if int(index) >= len(list) {
		return Device{}, false
	}
	return list[index], true
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestForceExternalOnly(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api, quietLogger())

	require.NoError(t, c.ForceExternalOnly())
	assert.Equal(t, []uint32{TopologyExternal | Apply}, api.calls)
}

func TestForceExternalOnlyFailure(t *testing.T) {
	api := &fakeAPI{results: map[uint32]int32{TopologyExternal | Apply: 5}}
	c := NewWithAPI(api, quietLogger())

	err := c.ForceExternalOnly()
	assert.ErrorIs(t, err, syserr.ErrPermissionDenied)
}

func TestRestoreExtendedFallsBackToDatabase(t *testing.T) {
	tests := []struct {
		name      string
		results   map[uint32]int32
		wantCalls []uint32
		wantErr   bool
	}{
		{
			name:      "extend succeeds",
			wantCalls: []uint32{TopologyExtend | Apply},
		},
		{
			name:      "extend fails, database succeeds",
			results:   map[uint32]int32{TopologyExtend | Apply: 31},
			wantCalls: []uint32{TopologyExtend | Apply, UseDatabaseCurrent | Apply},
		},
		{
			name: "both fail",
			results: map[uint32]int32{
				TopologyExtend | Apply:     31,
				UseDatabaseCurrent | Apply: 31,
			},
			wantCalls: []uint32{TopologyExtend | Apply, UseDatabaseCurrent | Apply},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{results: tt.results}
			err := NewWithAPI(api, quietLogger()).RestoreExtended()
			assert.Equal(t, tt.wantCalls, api.calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, syserr.ErrTransient)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMonitors(t *testing.T) {
	api := &fakeAPI{
		adapters: []Device{
			{Name: `\\.\DISPLAY1`, String: "Intel(R) UHD Graphics 620", StateFlags: StateAttachedToDesktop | StatePrimaryDevice},
			{Name: `\\.\DISPLAY2`, String: "Intel(R) UHD Graphics 620"},
		},
		monitors: map[string][]Device{
			`\\.\DISPLAY1`: {{Name: `\\.\DISPLAY1\Monitor0`, String: "Generic PnP Monitor", ID: `MONITOR\DELA0B8\{4d36e96e}`, StateFlags: StateAttachedToDesktop}},
			`\\.\DISPLAY2`: {{Name: `\\.\DISPLAY2\Monitor0`, String: "Generic PnP Monitor", ID: `MONITOR\Default_Monitor`}},
		},
	}

	mons, err := NewWithAPI(api, quietLogger()).Monitors()
	require.NoError(t, err)
	require.Len(t, mons, 2)
	assert.True(t, mons[0].Active)
	assert.True(t, mons[0].Primary)
	assert.False(t, mons[1].Active)
	assert.Equal(t, "Intel(R) UHD Graphics 620", mons[1].AdapterString)

	info := ScreenInfo(mons, func(m Monitor) bool { return strings.Contains(m.DeviceID, "Default") })
	assert.Contains(t, info, "Monitors: 2 (1 active)")
	assert.Contains(t, info, "(internal, inactive)")
	assert.Contains(t, info, "(external, active, primary)")
}

func TestMonitorsNoAdapters(t *testing.T) {
	_, err := NewWithAPI(&fakeAPI{}, quietLogger()).Monitors()
	assert.ErrorIs(t, err, syserr.ErrUnsupported)
}
