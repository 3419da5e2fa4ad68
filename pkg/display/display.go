// Package display forces the display topology and enumerates the monitors
// attached to each adapter.
//
// Controller has no state of its own and depends on nothing else in the
// daemon, so a fresh one can be created from a crash handler.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/syserr"
)

// SetDisplayConfig flags.
const (
	TopologyInternal   uint32 = 0x00000001
	TopologyClone      uint32 = 0x00000002
	TopologyExtend     uint32 = 0x00000004
	TopologyExternal   uint32 = 0x00000008
	UseDatabaseCurrent uint32 = 0x0000000F
	Apply              uint32 = 0x00000080
)

// DISPLAY_DEVICE state flags.
const (
	StateAttachedToDesktop uint32 = 0x00000001
	StatePrimaryDevice     uint32 = 0x00000004
)

// Device is one entry returned by EnumDisplayDevices, either an adapter or a
// monitor.
type Device struct {
	Name       string `json:"name"`
	String     string `json:"string"`
	ID         string `json:"id"`
	StateFlags uint32 `json:"stateFlags"`
}

// API is the OS surface used by this package.
type API interface {
	// SetDisplayConfig calls SetDisplayConfig with no path or mode arrays and
	// returns the raw result, zero on success.
	SetDisplayConfig(flags uint32) int32
	// EnumDisplayDevices returns the device at index under parent. parent is
	// empty for adapters. ok is false past the last device.
	EnumDisplayDevices(parent string, index uint32) (dev Device, ok bool)
}

// Monitor is a monitor together with the adapter driving it.
type Monitor struct {
	Name          string `json:"name"`
	DeviceString  string `json:"deviceString"`
	DeviceID      string `json:"deviceId"`
	AdapterName   string `json:"adapterName"`
	AdapterString string `json:"adapterString"`
	Active        bool   `json:"active"`
	Primary       bool   `json:"primary"`
}

// Enumerator lists monitors.
type Enumerator interface {
	Monitors() ([]Monitor, error)
}

type Controller struct {
	api API
	log logrus.FieldLogger
}

var _ Enumerator = &Controller{}

// New returns a Controller backed by the operating system.
func New(log logrus.FieldLogger) *Controller {
	return NewWithAPI(NativeAPI(), log)
}

func NewWithAPI(api API, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{api: api, log: log}
}

// ForceExternalOnly switches to the external-only topology. The call is
// idempotent.
func (c *Controller) ForceExternalOnly() error {
	start := time.Now()
	if rc := c.api.SetDisplayConfig(TopologyExternal | Apply); rc != 0 {
		err := syserr.FromCode("SetDisplayConfig(EXTERNAL)", uint32(rc))
		c.log.WithField("took", time.Since(start)).
			Warnf("DISPLAY: failed to set external-only mode (HRESULT: 0x%08X)", uint32(rc))
		return err
	}
	c.log.WithField("took", time.Since(start)).Info("DISPLAY: forcing external-only mode")
	return nil
}

// RestoreExtended switches back to the extended topology. If that fails it
// falls back to the last configuration stored in the display database.
func (c *Controller) RestoreExtended() error {
	start := time.Now()
	rc := c.api.SetDisplayConfig(TopologyExtend | Apply)
	if rc == 0 {
		c.log.WithField("took", time.Since(start)).Info("DISPLAY: restored extended mode (internal + external)")
		return nil
	}
	c.log.Debugf("DISPLAY: extend topology failed (HRESULT: 0x%08X), trying database configuration", uint32(rc))

	rc = c.api.SetDisplayConfig(UseDatabaseCurrent | Apply)
	if rc == 0 {
		c.log.WithField("took", time.Since(start)).Info("DISPLAY: restored previous configuration")
		return nil
	}
	c.log.WithField("took", time.Since(start)).
		Warnf("DISPLAY: failed to restore display mode (HRESULT: 0x%08X)", uint32(rc))
	return syserr.FromCode("SetDisplayConfig(EXTEND)", uint32(rc))
}

// Monitors enumerates every monitor under every adapter.
func (c *Controller) Monitors() ([]Monitor, error) {
	var monitors []Monitor
	adapters := 0
	for ai := uint32(0); ; ai++ {
		adapter, ok := c.api.EnumDisplayDevices("", ai)
		if !ok {
			break
		}
		adapters++
		for mi := uint32(0); ; mi++ {
			mon, ok := c.api.EnumDisplayDevices(adapter.Name, mi)
			if !ok {
				break
			}
			monitors = append(monitors, Monitor{
				Name:          mon.Name,
				DeviceString:  mon.String,
				DeviceID:      mon.ID,
				AdapterName:   adapter.Name,
				AdapterString: adapter.String,
				Active:        mon.StateFlags&StateAttachedToDesktop != 0,
				Primary:       adapter.StateFlags&StatePrimaryDevice != 0,
			})
		}
	}
	if adapters == 0 {
		return nil, syserr.New(syserr.ErrUnsupported, "EnumDisplayDevices", fmt.Errorf("no display adapters found"))
	}
	return monitors, nil
}

// ScreenInfo renders monitors as a multi-line report.
func ScreenInfo(monitors []Monitor, classify func(Monitor) bool) string {
	var sb strings.Builder
	active := 0
	for _, m := range monitors {
		if m.Active {
			active++
		}
	}
	fmt.Fprintf(&sb, "Monitors: %d (%d active)\n", len(monitors), active)
	for i, m := range monitors {
		kind := "external"
		if classify != nil && classify(m) {
			kind = "internal"
		}
		state := "inactive"
		if m.Active {
			state = "active"
		}
		if m.Primary {
			state += ", primary"
		}
		fmt.Fprintf(&sb, "[%d] %s (%s, %s)\n", i, m.DeviceString, kind, state)
		fmt.Fprintf(&sb, "    Device: %s\n", m.Name)
		fmt.Fprintf(&sb, "    ID: %s\n", m.DeviceID)
		fmt.Fprintf(&sb, "    Adapter: %s\n", m.AdapterString)
	}
	return sb.String()
}
