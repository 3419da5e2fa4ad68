package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.True(t, f.FirstRun())
	assert.False(t, f.BatteryHealthGuardEnabled())
	assert.False(t, f.LiveBaselineFallback())
	assert.Equal(t, 2*time.Second, f.PollInterval())
	assert.Equal(t, 2*time.Second, f.ResumeDelay())
	assert.Equal(t, "", f.OriginalPowerSchemeGUID())

	_, ok := f.OriginalHibernateTimeout()
	assert.False(t, ok)
}

func TestFileEmptyIsEmptyConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte("  \n"), 0644))

	f, err := NewFile(p)
	require.NoError(t, err)
	assert.True(t, f.FirstRun())
}

func TestFileInvalidJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0644))

	_, err := NewFile(p)
	assert.Error(t, err)
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "LADApp", "config.json")
	f, err := NewFile(p)
	require.NoError(t, err)

	f.SetFirstRun(false)
	f.SetOriginalHibernateTimeout(0)
	f.SetOriginalPowerSchemeGUID("381b4222-f694-41f0-9685-ff5bb260df2e")
	f.SetBatteryHealthGuardEnabled(true)
	f.SetSelectedKeyboardInstancePath(`HID\VID_046D&PID_C52B&MI_00\7&1A2B3C&0&0000`)
	require.NoError(t, f.Save())

	g, err := NewFile(p)
	require.NoError(t, err)
	assert.False(t, g.FirstRun())
	assert.True(t, g.BatteryHealthGuardEnabled())
	assert.Equal(t, "381b4222-f694-41f0-9685-ff5bb260df2e", g.OriginalPowerSchemeGUID())
	assert.Equal(t, `HID\VID_046D&PID_C52B&MI_00\7&1A2B3C&0&0000`, g.SelectedKeyboardInstancePath())

	// A zero timeout ("never") is a real baseline and must survive omitempty.
	v, ok := g.OriginalHibernateTimeout()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), v)
}

func TestFileUsesPersistedKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "firstRun": false,
  "originalHibernateTimeout": 10800,
  "originalPowerSchemeGuid": "381b4222-f694-41f0-9685-ff5bb260df2e",
  "batteryHealthGuardEnabled": true
}`
	require.NoError(t, os.WriteFile(p, []byte(raw), 0644))

	f, err := NewFile(p)
	require.NoError(t, err)
	v, ok := f.OriginalHibernateTimeout()
	assert.True(t, ok)
	assert.Equal(t, uint32(10800), v)
	assert.True(t, f.BatteryHealthGuardEnabled())
}

func TestFileClearBaselines(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	f.SetOriginalHibernateTimeout(600)
	f.SetOriginalPowerSchemeGUID("381b4222-f694-41f0-9685-ff5bb260df2e")
	f.ClearBaselines()

	_, ok := f.OriginalHibernateTimeout()
	assert.False(t, ok)
	assert.Equal(t, "", f.OriginalPowerSchemeGUID())
}

func TestFileClampsIntervals(t *testing.T) {
	zero, big := 0, 1_000_000
	f := NewFileFromConfig(&RawFileConfig{PollIntervalSeconds: &zero, ResumeDelayMilliseconds: &big}, "")
	assert.Equal(t, time.Second, f.PollInterval())
	assert.Equal(t, time.Minute, f.ResumeDelay())
}

func TestNewRawFileConfigFromConfig(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	f.SetOriginalHibernateTimeout(3600)

	raw, err := NewRawFileConfigFromConfig(f)
	require.NoError(t, err)
	require.NotNil(t, raw.OriginalHibernateTimeout)
	assert.Equal(t, uint32(3600), *raw.OriginalHibernateTimeout)
	assert.Nil(t, raw.OriginalPowerSchemeGUID)
	assert.Equal(t, 2, *raw.PollIntervalSeconds)

	_, err = NewRawFileConfigFromConfig(nil)
	assert.Error(t, err)
}
