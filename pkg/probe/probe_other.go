//go:build !windows

package probe

import (
	"github.com/ladapp/lad/pkg/syserr"
)

type unsupportedPower struct{}

// NativePowerSource returns a PowerSource that reports itself unsupported.
func NativePowerSource() PowerSource { return unsupportedPower{} }

func (unsupportedPower) PowerStatus() (PowerStatus, error) {
	return PowerStatus{ACLineStatus: ACLineUnknown, BatteryFlag: BatteryFlagUnknown},
		syserr.New(syserr.ErrUnsupported, "GetSystemPowerStatus", nil)
}

type noFans struct{}

// NativeFanSource returns a FanSource without fans.
func NativeFanSource() FanSource { return noFans{} }

func (noFans) Fans() ([]Fan, error) {
	return nil, syserr.New(syserr.ErrUnsupported, "Win32_Fan", nil)
}
