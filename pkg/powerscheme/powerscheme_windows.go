//go:build windows

package powerscheme

import (
	"encoding/binary"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/ladapp/lad/pkg/syserr"
)

var (
	powrprof                   = windows.NewLazySystemDLL("powrprof.dll")
	procPowerGetActiveScheme   = powrprof.NewProc("PowerGetActiveScheme")
	procPowerReadACValueIndex  = powrprof.NewProc("PowerReadACValueIndex")
	procPowerWriteACValueIndex = powrprof.NewProc("PowerWriteACValueIndex")
	procPowerSetActiveScheme   = powrprof.NewProc("PowerSetActiveScheme")
)

type nativeAPI struct{}

// NativeAPI returns the powrprof backed API.
func NativeAPI() API { return nativeAPI{} }

func (nativeAPI) ActiveScheme() (uuid.UUID, error) {
	if err := procPowerGetActiveScheme.Find(); err != nil {
		return uuid.Nil, syserr.New(syserr.ErrUnsupported, "PowerGetActiveScheme", err)
	}

	var p *windows.GUID
	r, _, _ := procPowerGetActiveScheme.Call(0, uintptr(unsafe.Pointer(&p)))
	if err := syserr.FromCode("PowerGetActiveScheme", uint32(r)); err != nil {
		return uuid.Nil, err
	}
	if p == nil {
		return uuid.Nil, syserr.Newf(syserr.ErrTransient, "PowerGetActiveScheme", "no scheme returned")
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(p)))

	return fromGUID(*p), nil
}

func (nativeAPI) ReadACValue(scheme, subgroup, setting uuid.UUID) (uint32, error) {
	if err := procPowerReadACValueIndex.Find(); err != nil {
		return 0, syserr.New(syserr.ErrUnsupported, "PowerReadACValueIndex", err)
	}

	s, g, k := toGUID(scheme), toGUID(subgroup), toGUID(setting)
	var value uint32
	r, _, _ := procPowerReadACValueIndex.Call(
		0,
		uintptr(unsafe.Pointer(&s)),
		uintptr(unsafe.Pointer(&g)),
		uintptr(unsafe.Pointer(&k)),
		uintptr(unsafe.Pointer(&value)),
	)
	if err := syserr.FromCode("PowerReadACValueIndex", uint32(r)); err != nil {
		return 0, err
	}
	return value, nil
}

func (nativeAPI) WriteACValue(scheme, subgroup, setting uuid.UUID, value uint32) error {
	if err := procPowerWriteACValueIndex.Find(); err != nil {
		return syserr.New(syserr.ErrUnsupported, "PowerWriteACValueIndex", err)
	}

	s, g, k := toGUID(scheme), toGUID(subgroup), toGUID(setting)
	r, _, _ := procPowerWriteACValueIndex.Call(
		0,
		uintptr(unsafe.Pointer(&s)),
		uintptr(unsafe.Pointer(&g)),
		uintptr(unsafe.Pointer(&k)),
		uintptr(value),
	)
	return syserr.FromCode("PowerWriteACValueIndex", uint32(r))
}

func (nativeAPI) SetActiveScheme(scheme uuid.UUID) error {
	if err := procPowerSetActiveScheme.Find(); err != nil {
		return syserr.New(syserr.ErrUnsupported, "PowerSetActiveScheme", err)
	}

	s := toGUID(scheme)
	r, _, _ := procPowerSetActiveScheme.Call(0, uintptr(unsafe.Pointer(&s)))
	return syserr.FromCode("PowerSetActiveScheme", uint32(r))
}

func toGUID(u uuid.UUID) windows.GUID {
	var g windows.GUID
	g.Data1 = binary.BigEndian.Uint32(u[0:4])
	g.Data2 = binary.BigEndian.Uint16(u[4:6])
	g.Data3 = binary.BigEndian.Uint16(u[6:8])
	copy(g.Data4[:], u[8:16])
	return g
}

func fromGUID(g windows.GUID) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:16], g.Data4[:])
	return u
}
