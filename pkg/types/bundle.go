package types

import "time"

// Direction names which way a bundle moves the system.
type Direction string

const (
	DirectionEnable Direction = "enable"
	DirectionRevert Direction = "revert"
	DirectionEject  Direction = "eject"
)

// Step names, in bundle order.
const (
	StepLidClose     = "lid_close_action"
	StepHibernate    = "hibernate_timeout"
	StepPowerScheme  = "power_scheme"
	StepBatteryGuard = "battery_guard"
	StepPeripheral   = "peripheral_wake"
	StepUSBSuspend   = "usb_selective_suspend"
	StepDisplay      = "display_topology"
)

// Outcome of a single step.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult records one attempted bundle step.
type StepResult struct {
	Step    string        `json:"step"`
	Outcome Outcome       `json:"outcome"`
	Kind    string        `json:"kind,omitempty"`
	Error   string        `json:"error,omitempty"`
	Hint    string        `json:"hint,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Took    time.Duration `json:"took"`
}

// BundleReport is the record of one bundle run.
type BundleReport struct {
	Direction Direction     `json:"direction"`
	Forced    bool          `json:"forced"`
	Steps     []StepResult  `json:"steps"`
	Started   time.Time     `json:"started"`
	Took      time.Duration `json:"took"`
}

// Failed returns the number of failed steps.
func (r *BundleReport) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// Succeeded returns the number of steps that completed.
func (r *BundleReport) Succeeded() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == OutcomeOK {
			n++
		}
	}
	return n
}

// Step returns the result for the named step.
func (r *BundleReport) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}
