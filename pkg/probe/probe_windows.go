//go:build windows

package probe

import (
	"unsafe"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"

	"github.com/ladapp/lad/pkg/syserr"
)

var (
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemPowerStatus = kernel32.NewProc("GetSystemPowerStatus")
)

type systemPowerStatus struct {
	ACLineStatus        byte
	BatteryFlag         byte
	BatteryLifePercent  byte
	SystemStatusFlag    byte
	BatteryLifeTime     uint32
	BatteryFullLifeTime uint32
}

type kernelPower struct{}

// NativePowerSource returns a PowerSource backed by GetSystemPowerStatus.
func NativePowerSource() PowerSource { return kernelPower{} }

func (kernelPower) PowerStatus() (PowerStatus, error) {
	var st systemPowerStatus
	r, _, callErr := procGetSystemPowerStatus.Call(uintptr(unsafe.Pointer(&st)))
	if r == 0 {
		code := uint32(windows.ERROR_GEN_FAILURE)
		if errno, ok := callErr.(windows.Errno); ok && errno != 0 {
			code = uint32(errno)
		}
		return PowerStatus{}, syserr.FromCode("GetSystemPowerStatus", code)
	}
	return PowerStatus{
		ACLineStatus:        st.ACLineStatus,
		BatteryFlag:         st.BatteryFlag,
		BatteryLifePercent:  st.BatteryLifePercent,
		BatteryLifeTime:     st.BatteryLifeTime,
		BatteryFullLifeTime: st.BatteryFullLifeTime,
	}, nil
}

type win32Fan struct {
	Name         string
	DesiredSpeed uint64
}

type wmiFans struct{}

// NativeFanSource returns a FanSource backed by the Win32_Fan WMI class.
func NativeFanSource() FanSource { return wmiFans{} }

func (wmiFans) Fans() ([]Fan, error) {
	var dst []win32Fan
	if err := wmi.Query("SELECT Name, DesiredSpeed FROM Win32_Fan", &dst); err != nil {
		return nil, syserr.New(syserr.ErrUnsupported, "Win32_Fan", err)
	}
	fans := make([]Fan, 0, len(dst))
	for _, f := range dst {
		fans = append(fans, Fan(f))
	}
	return fans, nil
}
