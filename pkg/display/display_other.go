//go:build !windows

package display

const errorNotSupported = 50

type unsupportedAPI struct{}

// NativeAPI returns an API that reports every call as unsupported.
func NativeAPI() API { return unsupportedAPI{} }

func (unsupportedAPI) SetDisplayConfig(uint32) int32 { return errorNotSupported }

func (unsupportedAPI) EnumDisplayDevices(string, uint32) (Device, bool) { return Device{}, false }
