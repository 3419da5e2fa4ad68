package chargelimit

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/syserr"
)

type fakeIdentity struct {
	manufacturer string
	err          error
	calls        int
}

func (f *fakeIdentity) Manufacturer() (string, error) {
	f.calls++
	return f.manufacturer, f.err
}

type fakeAPI struct {
	classes   map[string]bool
	instances map[string]string
	code      uint32
	invokeErr error
	calls     []Call
	checks    int
}

func (f *fakeAPI) ClassExists(namespace, class string) bool {
	f.checks++
	return f.classes[namespace+":"+class]
}

func (f *fakeAPI) InstanceProperty(namespace, class, _, _ string) (string, error) {
	v, ok := f.instances[namespace+":"+class]
	if !ok {
		return "", syserr.Newf(syserr.ErrUnsupported, class, "no instance")
	}
	return v, nil
}

func (f *fakeAPI) Invoke(c Call) (uint32, error) {
	f.calls = append(f.calls, c)
	return f.code, f.invokeErr
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestLookupOEM(t *testing.T) {
	tests := []struct {
		manufacturer string
		want         OEM
	}{
		{"LENOVO123", OEMLenovo},
		{"  lenovo ", OEMLenovo},
		{"Dell Inc.", OEMDell},
		{"ASUSTeK COMPUTER INC.", OEMASUS},
		{"HP", OEMHP},
		{"Hewlett-Packard", OEMHP},
		{"Unknown Corp", OEMUnknown},
		{"", OEMUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.manufacturer, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupOEM(tt.manufacturer))
		})
	}
}

func TestStrategyDispatch(t *testing.T) {
	tests := []struct {
		manufacturer string
		class        string
		method       string
		supported    bool
	}{
		{"LENOVO123", "Lenovo_SetBiosSetting", "SetBiosSetting", true},
		{"Dell Inc.", "DellSmbiosBattery", "SetBatteryChargeThreshold", true},
		{"ASUSTeK", "AsusAtkWmi_WMNB", "DEVS", true},
		{"Unknown Corp", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.manufacturer, func(t *testing.T) {
			api := &fakeAPI{classes: map[string]bool{
				`root\WMI:Lenovo_BiosSetting`: true,
				`root\WMI:DellSmbiosBattery`:  true,
				`root\WMI:AsusAtkWmi_WMNB`:    true,
			}}
			c := NewWithAPI(&fakeIdentity{manufacturer: tt.manufacturer}, api, quietLogger())

			assert.Equal(t, tt.supported, c.IsSupported())
			err := c.Apply()
			if !tt.supported {
				assert.ErrorIs(t, err, syserr.ErrUnsupported)
				assert.Empty(t, api.calls)
				assert.Equal(t, instructionsGeneric, c.Instructions())
				return
			}
			require.NoError(t, err)
			require.Len(t, api.calls, 1)
			assert.Equal(t, tt.class, api.calls[0].Class)
			assert.Equal(t, tt.method, api.calls[0].Method)
		})
	}
}

func TestManufacturerDetectedOnce(t *testing.T) {
	id := &fakeIdentity{manufacturer: " Dell Inc. "}
	c := NewWithAPI(id, &fakeAPI{}, quietLogger())

	m, err := c.Manufacturer()
	require.NoError(t, err)
	assert.Equal(t, "DELL INC.", m)
	_, _ = c.Manufacturer()
	assert.Equal(t, 1, id.calls)

	c.Invalidate()
	_, _ = c.Manufacturer()
	assert.Equal(t, 2, id.calls)
}

func TestSupportCheckCached(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(&fakeIdentity{manufacturer: "LENOVO"}, api, quietLogger())

	assert.False(t, c.IsSupported())
	assert.False(t, c.IsSupported())
	assert.Equal(t, 1, api.checks)
}

func TestManufacturerFailureIsUnsupported(t *testing.T) {
	c := NewWithAPI(&fakeIdentity{err: errors.New("wmi down")}, &fakeAPI{}, quietLogger())

	assert.False(t, c.IsSupported())
	assert.ErrorIs(t, c.Apply(), syserr.ErrUnsupported)
	assert.Equal(t, instructionsGeneric, c.Instructions())
}

func TestLenovoSettings(t *testing.T) {
	api := &fakeAPI{classes: map[string]bool{`root\WMI:Lenovo_BiosSetting`: true}}
	c := NewWithAPI(&fakeIdentity{manufacturer: "LENOVO"}, api, quietLogger())

	require.NoError(t, c.Apply())
	require.NoError(t, c.Revert())
	require.Len(t, api.calls, 2)
	assert.Equal(t, "ConservationMode,Enabled", api.calls[0].Args[0].Value)
	assert.Equal(t, "ConservationMode,Disabled", api.calls[1].Args[0].Value)
	assert.Equal(t, "Return", api.calls[0].Result)
	assert.Equal(t, instructionsLenovo, c.Instructions())
}

func TestASUSMode(t *testing.T) {
	assert.Equal(t, uint32(0), asusMode(100))
	assert.Equal(t, uint32(1), asusMode(80))
	assert.Equal(t, uint32(1), asusMode(90))
	assert.Equal(t, uint32(2), asusMode(60))
}

func TestDellThresholds(t *testing.T) {
	start, stop := dellThresholds(80)
	assert.Equal(t, uint32(75), start)
	assert.Equal(t, uint32(80), stop)

	start, stop = dellThresholds(100)
	assert.Equal(t, uint32(95), start)
	assert.Equal(t, uint32(100), stop)

	start, _ = dellThresholds(52)
	assert.Equal(t, uint32(50), start)
}

func TestHPUsesBatterySetting(t *testing.T) {
	api := &fakeAPI{
		classes: map[string]bool{`root\HP\InstrumentedBIOS:HP_BIOSSetting`: true},
		instances: map[string]string{
			`root\HP\InstrumentedBIOS:HP_BIOSSetting`: "Battery Health Manager",
		},
	}
	c := NewWithAPI(&fakeIdentity{manufacturer: "HP"}, api, quietLogger())

	require.NoError(t, c.Apply())
	require.Len(t, api.calls, 1)
	call := api.calls[0]
	assert.Equal(t, `root\HP\InstrumentedBIOS`, call.Namespace)
	assert.Equal(t, []Arg{
		{Name: "Name", Value: "Battery Health Manager"},
		{Name: "Value", Value: hpMaximizeHealth},
	}, call.Args)

	require.NoError(t, c.Revert())
	assert.Equal(t, hpMinimizeHealth, api.calls[1].Args[1].Value)
}

func TestHPFallsBackToWMINamespace(t *testing.T) {
	api := &fakeAPI{
		classes:   map[string]bool{`root\WMI:HP_BIOSSetting`: true},
		instances: map[string]string{`root\WMI:HP_BIOSSetting`: "Battery Care Function"},
	}
	c := NewWithAPI(&fakeIdentity{manufacturer: "HP"}, api, quietLogger())

	require.NoError(t, c.Apply())
	require.Len(t, api.calls, 1)
	assert.Equal(t, `root\WMI`, api.calls[0].Namespace)
}

func TestNonZeroReturnCode(t *testing.T) {
	api := &fakeAPI{
		classes: map[string]bool{`root\WMI:DellSmbiosBattery`: true},
		code:    3,
	}
	c := NewWithAPI(&fakeIdentity{manufacturer: "Dell Inc."}, api, quietLogger())

	err := c.Apply()
	require.Error(t, err)
	assert.ErrorIs(t, err, syserr.ErrTransient)
	var se *syserr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, uint32(3), se.Code)
}

func TestInvokeError(t *testing.T) {
	api := &fakeAPI{
		classes:   map[string]bool{`root\WMI:AsusAtkWmi_WMNB`: true},
		invokeErr: syserr.Newf(syserr.ErrPermissionDenied, "DEVS", "access denied"),
	}
	c := NewWithAPI(&fakeIdentity{manufacturer: "ASUS"}, api, quietLogger())

	assert.ErrorIs(t, c.Apply(), syserr.ErrPermissionDenied)
}
