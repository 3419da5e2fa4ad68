// Package probe reads the two environmental facts readiness is derived from:
// whether the machine is on AC power and how many external monitors are
// attached. Changes are published on an events.EventHub.
package probe

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/events"
	"github.com/ladapp/lad/pkg/utils/lazy"
)

// SYSTEM_POWER_STATUS values.
const (
	ACLineOffline byte = 0
	ACLineOnline  byte = 1
	ACLineUnknown byte = 255

	BatteryFlagHigh      byte = 1
	BatteryFlagLow       byte = 2
	BatteryFlagCritical  byte = 4
	BatteryFlagCharging  byte = 8
	BatteryFlagNoBattery byte = 128
	BatteryFlagUnknown   byte = 255

	BatteryPercentUnknown byte   = 255
	BatteryLifeUnknown    uint32 = 0xFFFFFFFF
)

// PowerStatus mirrors SYSTEM_POWER_STATUS.
type PowerStatus struct {
	ACLineStatus        byte
	BatteryFlag         byte
	BatteryLifePercent  byte
	BatteryLifeTime     uint32
	BatteryFullLifeTime uint32
}

// PowerSource reads the system power status.
type PowerSource interface {
	PowerStatus() (PowerStatus, error)
}

// Sample is one reading of the environment.
type Sample struct {
	OnAC           bool      `json:"onAC"`
	ExternalCount  int       `json:"externalMonitors"`
	ActiveMonitors int       `json:"activeMonitors"`
	At             time.Time `json:"at"`
}

// Ready reports whether the sample satisfies the readiness condition.
func (s Sample) Ready() bool {
	return s.OnAC && s.ExternalCount > 0
}

type Probe struct {
	power     PowerSource
	monitors  display.Enumerator
	batteries BatterySource
	fans      FanSource
	hub       *events.EventHub
	log       logrus.FieldLogger

	hasBattery lazy.Value[bool]

	mu     sync.Mutex
	last   Sample
	seeded bool
}

func New(power PowerSource, monitors display.Enumerator, batteries BatterySource, fans FanSource, hub *events.EventHub, log logrus.FieldLogger) *Probe {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Probe{
		power:     power,
		monitors:  monitors,
		batteries: batteries,
		fans:      fans,
		hub:       hub,
		log:       log,
	}
}

// NewNative returns a Probe backed by the operating system.
func NewNative(monitors display.Enumerator, hub *events.EventHub, log logrus.FieldLogger) *Probe {
	return New(NativePowerSource(), monitors, NativeBatterySource(), NativeFanSource(), hub, log)
}

// Hub returns the hub change events are published on.
func (p *Probe) Hub() *events.EventHub {
	return p.hub
}

// IsOnACPower reports whether the AC line is online. An unknown line status
// is reported as not on AC.
func (p *Probe) IsOnACPower() (bool, error) {
	st, err := p.power.PowerStatus()
	if err != nil {
		return false, err
	}
	return st.ACLineStatus == ACLineOnline, nil
}

// ExternalMonitorCount returns the number of attached external monitors.
func (p *Probe) ExternalMonitorCount() (int, error) {
	mons, err := p.monitors.Monitors()
	if err != nil {
		return 0, err
	}
	external, _ := CountExternal(mons, p.HasBattery())
	return external, nil
}

// HasBattery reports whether a system battery is present. The answer is
// computed once.
func (p *Probe) HasBattery() bool {
	present, err := p.hasBattery.Get(func() (bool, error) {
		return hasBattery(p.power, p.batteries)
	})
	if err != nil {
		// Laptops are the expected host; assume a battery when unsure.
		return true
	}
	return present
}

// Read samples the environment without publishing anything. Read failures
// are logged and produce the safe answer (not on AC, no monitors).
func (p *Probe) Read() Sample {
	s := Sample{At: time.Now()}

	onAC, err := p.IsOnACPower()
	if err != nil {
		p.log.Warnf("POWER: failed to read power status: %v", err)
	}
	s.OnAC = onAC

	mons, err := p.monitors.Monitors()
	if err != nil {
		p.log.Warnf("DISPLAY: failed to enumerate monitors: %v", err)
	} else {
		s.ExternalCount, s.ActiveMonitors = CountExternal(mons, p.HasBattery())
	}
	return s
}

// Poll samples the environment and publishes a change event for each value
// that differs from the previous poll. The first poll only seeds.
func (p *Probe) Poll() Sample {
	s := p.Read()

	p.mu.Lock()
	prev, seeded := p.last, p.seeded
	p.last, p.seeded = s, true
	p.mu.Unlock()

	if !seeded {
		return s
	}

	if prev.OnAC != s.OnAC {
		if s.OnAC {
			p.log.Info("POWER: AC power connected")
		} else {
			p.log.Info("POWER: AC power disconnected, running on battery")
		}
		p.hub.Publish(events.PowerLineChanged, events.PowerLineEvent{OnAC: s.OnAC, Ts: s.At.Unix()})
	}
	if prev.ExternalCount != s.ExternalCount {
		if s.ExternalCount > prev.ExternalCount {
			p.log.Infof("DISPLAY: external monitor connected (%d monitor(s) detected)", s.ExternalCount)
		} else {
			p.log.Infof("DISPLAY: external monitor disconnected (%d monitor(s) remaining)", s.ExternalCount)
		}
		p.hub.Publish(events.MonitorCountChanged, events.MonitorCountEvent{Old: prev.ExternalCount, New: s.ExternalCount, Ts: s.At.Unix()})
	}
	return s
}

// Last returns the sample from the previous Poll.
func (p *Probe) Last() (Sample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seeded
}
