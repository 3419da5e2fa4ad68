package probe

import (
	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"

	"github.com/ladapp/lad/pkg/syserr"
)

// BatterySource lists the system batteries.
type BatterySource interface {
	Batteries() ([]*battery.Battery, error)
}

type batteryLib struct{}

// NativeBatterySource returns a BatterySource backed by the battery library.
func NativeBatterySource() BatterySource { return batteryLib{} }

func (batteryLib) Batteries() ([]*battery.Battery, error) {
	bats, err := battery.GetAll()
	if err != nil && len(bats) == 0 {
		return nil, pkgerrors.Wrap(err, "failed to get batteries")
	}
	// Partial errors still leave usable entries; drop the nil ones.
	res := make([]*battery.Battery, 0, len(bats))
	for _, b := range bats {
		if b != nil {
			res = append(res, b)
		}
	}
	return res, nil
}

func hasBattery(power PowerSource, batteries BatterySource) (bool, error) {
	if power != nil {
		if st, err := power.PowerStatus(); err == nil {
			switch {
			case st.BatteryFlag == BatteryFlagNoBattery:
				return false, nil
			case st.BatteryFlag != BatteryFlagUnknown:
				return true, nil
			}
		}
	}
	if batteries == nil {
		return false, syserr.New(syserr.ErrUnsupported, "Batteries", nil)
	}
	bats, err := batteries.Batteries()
	if err != nil {
		return false, err
	}
	return len(bats) > 0, nil
}

// BatteryStatus is a summary of the primary battery.
type BatteryStatus struct {
	Present          bool     `json:"present"`
	Percent          *float64 `json:"percent,omitempty"`
	State            string   `json:"state"`
	RemainingSeconds *int     `json:"remainingSeconds,omitempty"`
	ChargeRateMW     float64  `json:"chargeRateMilliwatts"`
	DesignMWh        float64  `json:"designCapacityMilliwattHours"`
	FullMWh          float64  `json:"fullCapacityMilliwattHours"`
}

// BatteryStatus returns the charge percentage, state and remaining time of
// the system battery. NotApplicable is returned when no battery is present.
func (p *Probe) BatteryStatus() (BatteryStatus, error) {
	var st BatteryStatus

	ps, psErr := p.power.PowerStatus()
	if psErr == nil {
		if ps.BatteryFlag == BatteryFlagNoBattery {
			st.State = "Not Present"
			return st, syserr.New(syserr.ErrNotApplicable, "BatteryStatus", pkgerrors.New("no battery present"))
		}
		st.Present = ps.BatteryFlag != BatteryFlagUnknown
		st.State = stateFromFlag(ps.BatteryFlag)
		if ps.BatteryLifePercent != BatteryPercentUnknown && ps.BatteryLifePercent <= 100 {
			v := float64(ps.BatteryLifePercent)
			st.Percent = &v
		}
		// Windows reports no remaining time while charging.
		if ps.BatteryLifeTime != BatteryLifeUnknown {
			v := int(ps.BatteryLifeTime)
			st.RemainingSeconds = &v
		}
	}

	bats, err := p.batteries.Batteries()
	if err != nil || len(bats) == 0 {
		if psErr != nil {
			return st, syserr.New(syserr.ErrNotApplicable, "BatteryStatus", pkgerrors.New("battery status unavailable"))
		}
		if !st.Present {
			st.State = "Unknown"
		}
		return st, nil
	}

	b := bats[0]
	st.Present = true
	st.ChargeRateMW = b.ChargeRate
	st.DesignMWh = b.Design
	st.FullMWh = b.Full
	if st.Percent == nil && b.Full > 0 {
		v := b.Current / b.Full * 100
		st.Percent = &v
	}
	if psErr != nil {
		switch b.State {
		case battery.Charging:
			st.State = "Charging"
		case battery.Full:
			st.State = "High"
		case battery.Discharging:
			st.State = "Discharging"
		default:
			st.State = "Unknown"
		}
	}
	return st, nil
}

func stateFromFlag(flag byte) string {
	switch {
	case flag == BatteryFlagUnknown:
		return "Unknown"
	case flag&BatteryFlagNoBattery != 0:
		return "Not Present"
	case flag&BatteryFlagCharging != 0:
		return "Charging"
	case flag&BatteryFlagHigh != 0:
		return "High"
	case flag&BatteryFlagLow != 0:
		return "Low"
	case flag&BatteryFlagCritical != 0:
		return "Critical"
	default:
		return "Discharging"
	}
}
