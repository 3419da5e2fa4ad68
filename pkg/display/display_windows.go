//go:build windows

package display

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetDisplayConfig    = user32.NewProc("SetDisplayConfig")
	procEnumDisplayDevicesW = user32.NewProc("EnumDisplayDevicesW")
)

type displayDeviceW struct {
	cb           uint32
	deviceName   [32]uint16
	deviceString [128]uint16
	stateFlags   uint32
	deviceID     [128]uint16
	deviceKey    [128]uint16
}

type nativeAPI struct{}

// NativeAPI returns the user32 backed API.
func NativeAPI() API { return nativeAPI{} }

func (nativeAPI) SetDisplayConfig(flags uint32) int32 {
	if err := procSetDisplayConfig.Find(); err != nil {
		return int32(windows.ERROR_NOT_SUPPORTED)
	}
	r, _, _ := procSetDisplayConfig.Call(0, 0, 0, 0, uintptr(flags))
	return int32(r)
}

func (nativeAPI) EnumDisplayDevices(parent string, index uint32) (Device, bool) {
	if err := procEnumDisplayDevicesW.Find(); err != nil {
		return Device{}, false
	}

	var parentPtr *uint16
	if parent != "" {
		p, err := windows.UTF16PtrFromString(parent)
		if err != nil {
			return Device{}, false
		}
		parentPtr = p
	}

	var dd displayDeviceW
	dd.cb = uint32(unsafe.Sizeof(dd))
	r, _, _ := procEnumDisplayDevicesW.Call(
		uintptr(unsafe.Pointer(parentPtr)),
		uintptr(index),
		uintptr(unsafe.Pointer(&dd)),
		0,
	)
	if r == 0 {
		return Device{}, false
	}

	return Device{
		Name:       windows.UTF16ToString(dd.deviceName[:]),
		String:     windows.UTF16ToString(dd.deviceString[:]),
		ID:         windows.UTF16ToString(dd.deviceID[:]),
		StateFlags: dd.stateFlags,
	}, true
}
