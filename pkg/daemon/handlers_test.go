package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/chargelimit"
	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/events"
	"github.com/ladapp/lad/pkg/peripheral"
	"github.com/ladapp/lad/pkg/powerscheme"
	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/syserr"
	"github.com/ladapp/lad/pkg/types"
	"github.com/ladapp/lad/pkg/utils/ptr"
)

type fakeProbe struct {
	*fakeEnv
	battery    probe.BatteryStatus
	batteryErr error
	fans       map[string]uint64
}

func (f *fakeProbe) BatteryStatus() (probe.BatteryStatus, error) { return f.battery, f.batteryErr }
func (f *fakeProbe) FanSpeeds() (map[string]uint64, error)       { return f.fans, nil }

type fakeMonitors struct{ mons []display.Monitor }

func (f fakeMonitors) Monitors() ([]display.Monitor, error) { return f.mons, nil }

type fakeDevices struct {
	devices []peripheral.DeviceRecord
	err     error
}

func (f fakeDevices) Devices() ([]peripheral.DeviceRecord, error) { return f.devices, f.err }

type fakeChargeInfo struct{ supported bool }

func (f fakeChargeInfo) Manufacturer() (string, error) { return "LENOVO", nil }
func (f fakeChargeInfo) Strategy() (chargelimit.Strategy, bool) {
	return chargelimit.Strategy{Label: "Lenovo WMI"}, f.supported
}
func (f fakeChargeInfo) IsSupported() bool    { return f.supported }
func (f fakeChargeInfo) Instructions() string { return "Open Lenovo Vantage." }

type fakeBaselines struct {
	b     powerscheme.Baseline
	reset int
}

func (f *fakeBaselines) Baseline() powerscheme.Baseline { return f.b }
func (f *fakeBaselines) ResetBaseline() error {
	f.reset++
	f.b = powerscheme.Baseline{}
	return nil
}

type apiHarness struct {
	*harness
	router    *gin.Engine
	probe     *fakeProbe
	baselines *fakeBaselines
}

// newAPIHarness points the daemon globals at fakes and restores them when
// the test ends.
func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	h := newHarness(t, harnessOpts{guardSupported: true})

	f, err := config.NewFile(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	a := &apiHarness{
		harness:   h,
		probe:     &fakeProbe{fakeEnv: h.env, fans: map[string]uint64{"CPU Fan": 2400}},
		baselines: &fakeBaselines{},
	}

	oldConf, oldHub, oldOrch, oldEnv := conf, hub, orch, env
	oldMonitors, oldPeripherals, oldCharger, oldBaselines := monitors, peripherals, charger, baselines
	t.Cleanup(func() {
		conf, hub, orch, env = oldConf, oldHub, oldOrch, oldEnv
		monitors, peripherals, charger, baselines = oldMonitors, oldPeripherals, oldCharger, oldBaselines
	})

	conf = f
	hub = events.NewEventHub()
	orch = h.o
	env = a.probe
	monitors = fakeMonitors{mons: []display.Monitor{
		{Name: `\\.\DISPLAY1`, DeviceString: "Built-in Display", DeviceID: `MONITOR\BOE0A1C`, Active: true, Primary: true},
		{Name: `\\.\DISPLAY2`, DeviceString: "DELL U2720Q", DeviceID: `MONITOR\DELA0F2`, Active: true},
	}}
	peripherals = fakeDevices{devices: []peripheral.DeviceRecord{{Name: "USB Keyboard", IsKeyboard: true}}}
	charger = fakeChargeInfo{supported: true}
	baselines = a.baselines

	a.router = setupRoutes(NewMetrics())
	return a
}

func (a *apiHarness) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetStatus(t *testing.T) {
	a := newAPIHarness(t)
	a.env.set(true, 1)
	a.o.Evaluate()

	w := a.do(http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	st := decode[types.StatusResponse](t, w)
	assert.True(t, st.Ready)
	assert.True(t, st.OnAC)
	assert.Equal(t, 1, st.ExternalCount)
	require.NotNil(t, st.LastBundle)
	assert.Equal(t, types.DirectionEnable, st.LastBundle.Direction)
}

func TestGetReadiness(t *testing.T) {
	a := newAPIHarness(t)
	a.env.set(false, 2)

	w := a.do(http.MethodGet, "/readiness", "")
	require.Equal(t, http.StatusOK, w.Code)

	r := decode[types.Readiness](t, w)
	assert.False(t, r.Ready)
	assert.False(t, r.OnAC)
	assert.Equal(t, 2, r.ExternalMonitors)
}

func TestSetBatteryGuard(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodPut, "/battery-guard", "true")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "enabled, limit applies when LAD ready", decode[string](t, w))
	assert.True(t, conf.BatteryHealthGuardEnabled())

	w = a.do(http.MethodPut, "/battery-guard", "false")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "charge limit disabled, restored to 100%", decode[string](t, w))
	assert.False(t, conf.BatteryHealthGuardEnabled())
}

func TestSetBatteryGuardBadBody(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodPut, "/battery-guard", `"yes"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBatteryGuardInstructions(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/battery-guard/instructions", "")
	require.Equal(t, http.StatusOK, w.Code)

	info := decode[types.GuardInfo](t, w)
	assert.True(t, info.Supported)
	assert.Equal(t, "LENOVO", info.Manufacturer)
	assert.Equal(t, "Lenovo WMI", info.Method)
	assert.Equal(t, "Open Lenovo Vantage.", info.Instructions)
}

func TestPostReapply(t *testing.T) {
	a := newAPIHarness(t)
	a.env.set(true, 1)
	a.o.Evaluate()
	a.log.take()

	w := a.do(http.MethodPost, "/reapply", "")
	require.Equal(t, http.StatusCreated, w.Code)

	report := decode[types.BundleReport](t, w)
	assert.True(t, report.Forced)
	assert.Equal(t, enableCalls, a.log.take())
}

func TestPostReapplyAfterClose(t *testing.T) {
	a := newAPIHarness(t)
	a.o.Close()

	w := a.do(http.MethodPost, "/reapply", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPostEject(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodPost, "/eject", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, types.DirectionEject, decode[types.BundleReport](t, w).Direction)
}

func TestPostSafetyRevert(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodPost, "/safety-revert", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"display:extended"}, a.log.take())

	a.log.fail["display:extended"] = syserr.New(syserr.ErrTransient, "ChangeDisplaySettingsEx", errors.New("busy"))
	w = a.do(http.MethodPost, "/safety-revert", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetDevices(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	devices := decode[[]peripheral.DeviceRecord](t, w)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsKeyboard)

	peripherals = fakeDevices{err: errors.New("SetupDiGetClassDevs failed")}
	w = a.do(http.MethodGet, "/devices", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetScreens(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/screens", "")
	require.Equal(t, http.StatusOK, w.Code)
	text := decode[string](t, w)
	assert.Contains(t, text, "Monitors: 2 (2 active)")
	assert.Contains(t, text, "Built-in Display (internal, active, primary)")
	assert.Contains(t, text, "DELL U2720Q (external, active)")

	w = a.do(http.MethodGet, "/screens?format=json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]display.Monitor](t, w), 2)
}

func TestGetBattery(t *testing.T) {
	a := newAPIHarness(t)
	a.probe.battery = probe.BatteryStatus{Present: true, Percent: ptr.To(64.0), State: "charging"}

	w := a.do(http.MethodGet, "/battery", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[probe.BatteryStatus](t, w)
	assert.Equal(t, 64.0, *st.Percent)

	a.probe.batteryErr = syserr.New(syserr.ErrNotApplicable, "battery", nil)
	w = a.do(http.MethodGet, "/battery", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetFans(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/fans", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]uint64{"CPU Fan": 2400}, decode[map[string]uint64](t, w))
}

func TestBaselineRoutes(t *testing.T) {
	a := newAPIHarness(t)
	scheme := uuid.MustParse("381b4222-f694-41f0-9685-ff5bb260df2e")
	a.baselines.b = powerscheme.Baseline{HibernateTimeout: ptr.To(uint32(10800)), Scheme: &scheme}

	w := a.do(http.MethodGet, "/baseline", "")
	require.Equal(t, http.StatusOK, w.Code)
	b := decode[types.Baseline](t, w)
	assert.Equal(t, uint32(10800), *b.HibernateTimeout)
	assert.Equal(t, scheme.String(), *b.PowerScheme)
	assert.Equal(t, powerscheme.SchemeName(scheme), b.PowerSchemeName)

	w = a.do(http.MethodDelete, "/baseline", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, a.baselines.reset)

	w = a.do(http.MethodGet, "/baseline", "")
	b = decode[types.Baseline](t, w)
	assert.Nil(t, b.HibernateTimeout)
	assert.Nil(t, b.PowerScheme)
}

func TestGetLogs(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/logs?lines=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, len(decode[[]string](t, w)), 5)

	w = a.do(http.MethodGet, "/logs?lines=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(http.MethodGet, "/logs?lines=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConfig(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	raw := decode[config.RawFileConfig](t, w)
	require.NotNil(t, raw.PollIntervalSeconds)
	assert.Equal(t, 2, *raw.PollIntervalSeconds)
}

func TestGetMetrics(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestGetEvents(t *testing.T) {
	a := newAPIHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.router.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(events.SafetyRevert, events.MessageEvent{Message: "display topology restored"})
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event stream did not stop")
	}

	body := w.Body.String()
	assert.Contains(t, body, "event:hello")
	assert.Contains(t, body, "event:"+events.SafetyRevert)
	assert.Contains(t, body, "display topology restored")
	assert.Equal(t, 0, hub.Subscribers())
}
