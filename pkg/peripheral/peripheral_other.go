//go:build !windows

package peripheral

import "github.com/ladapp/lad/pkg/syserr"

type nativeAPI struct{}

// NativeAPI returns an API whose calls all fail with syserr.ErrUnsupported.
func NativeAPI() API { return nativeAPI{} }

func (nativeAPI) EnumerateHID() ([]Candidate, error) {
	return nil, syserr.Newf(syserr.ErrUnsupported, "SetupDiGetClassDevs", "HID wake control requires Windows")
}

func (nativeAPI) SetWakeEnabled(string) error {
	return syserr.Newf(syserr.ErrUnsupported, "DevicePowerSetDeviceState", "HID wake control requires Windows")
}
