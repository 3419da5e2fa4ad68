//go:build windows

package osver

import "golang.org/x/sys/windows"

func get() (Version, bool) {
	info := windows.RtlGetVersion()
	return Version{
		Major: int(info.MajorVersion),
		Minor: int(info.MinorVersion),
		Build: int(info.BuildNumber),
	}, true
}
