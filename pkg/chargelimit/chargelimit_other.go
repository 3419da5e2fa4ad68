//go:build !windows

package chargelimit

import "github.com/ladapp/lad/pkg/syserr"

type noIdentity struct{}

// NativeIdentity returns an Identity that always fails with
// syserr.ErrUnsupported.
func NativeIdentity() Identity { return noIdentity{} }

func (noIdentity) Manufacturer() (string, error) {
	return "", syserr.Newf(syserr.ErrUnsupported, "Win32_ComputerSystem", "WMI requires Windows")
}

type noAPI struct{}

// NativeAPI returns an API with no management classes.
func NativeAPI() API { return noAPI{} }

func (noAPI) ClassExists(string, string) bool { return false }

func (noAPI) InstanceProperty(_, class, _, _ string) (string, error) {
	return "", syserr.Newf(syserr.ErrUnsupported, class, "WMI requires Windows")
}

func (noAPI) Invoke(c Call) (uint32, error) {
	return 0, syserr.Newf(syserr.ErrUnsupported, c.Class+"."+c.Method, "WMI requires Windows")
}
