//go:build windows

package peripheral

import (
	"errors"
	"strings"
	"unsafe"

	"github.com/sstallion/go-hid"
	"golang.org/x/sys/windows"

	"github.com/ladapp/lad/pkg/syserr"
)

var (
	hidDLL          = windows.NewLazySystemDLL("hid.dll")
	procHidGetGUID  = hidDLL.NewProc("HidD_GetHidGuid")
	powrprof        = windows.NewLazySystemDLL("powrprof.dll")
	procSetDevState = powrprof.NewProc("DevicePowerSetDeviceState")
)

const devicePowerSetWakeEnabled = 0x00000001

// hidInterfaceGUID is used when hid.dll cannot report it.
var hidInterfaceGUID = windows.GUID{
	Data1: 0x4d1e55b2,
	Data2: 0xf16f,
	Data3: 0x11cf,
	Data4: [8]byte{0x88, 0xcb, 0x00, 0x11, 0x11, 0x00, 0x00, 0x30},
}

type nativeAPI struct{}

// NativeAPI returns the SetupAPI and hidapi backed API.
func NativeAPI() API { return nativeAPI{} }

func (nativeAPI) EnumerateHID() ([]Candidate, error) {
	nodes, err := setupDiNodes()
	if err != nil {
		return nil, err
	}

	// hidapi opens each interface itself and leaves out the ones it cannot
	// open, so a node it reports is an openable one.
	if err := hid.Init(); err != nil {
		return nil, syserr.New(syserr.ErrTransient, "hid_init", err)
	}
	defer hid.Exit()
	_ = hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		id := InstancePathFromInterfacePath(info.Path)
		c, ok := nodes.byID[id]
		if !ok {
			return nil
		}
		c.Opened = true
		c.Manufacturer = strings.TrimSpace(info.MfrStr)
		c.Product = strings.TrimSpace(info.ProductStr)
		c.VendorID = info.VendorID
		c.ProductID = info.ProductID
		c.UsagePage = info.UsagePage
		c.Usage = info.Usage
		return nil
	})

	out := make([]Candidate, 0, len(nodes.order))
	for _, id := range nodes.order {
		out = append(out, *nodes.byID[id])
	}
	return out, nil
}

type nodeSet struct {
	order []string
	byID  map[string]*Candidate
}

func setupDiNodes() (*nodeSet, error) {
	guid := hidGUID()
	devs, err := windows.SetupDiGetClassDevsEx(&guid, "", 0, windows.DIGCF_PRESENT|windows.DIGCF_DEVICEINTERFACE, 0, "")
	if err != nil {
		return nil, syserr.New(syserr.KindOfCode(errnoCode(err)), "SetupDiGetClassDevs", err)
	}
	defer devs.Close()

	set := &nodeSet{byID: map[string]*Candidate{}}
	for i := 0; ; i++ {
		data, err := devs.EnumDeviceInfo(i)
		if err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_ITEMS) {
				break
			}
			continue
		}

		id, err := devs.DeviceInstanceID(data)
		if err != nil || id == "" {
			continue
		}
		id = strings.ToUpper(id)
		if _, dup := set.byID[id]; dup {
			continue
		}

		c := &Candidate{
			InstancePath: id,
			Description:  registryString(devs, data, windows.SPDRP_FRIENDLYNAME, windows.SPDRP_DEVICEDESC),
			ContainerID:  registryString(devs, data, windows.SPDRP_BASE_CONTAINERID),
		}
		c.VendorID, c.ProductID, _ = ParseVIDPID(id)
		set.byID[id] = c
		set.order = append(set.order, id)
	}
	return set, nil
}

// registryString returns the first non-empty string property of props.
func registryString(devs windows.DevInfo, data *windows.DevInfoData, props ...windows.SPDRP) string {
	for _, prop := range props {
		v, err := devs.DeviceRegistryProperty(data, prop)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func hidGUID() windows.GUID {
	if err := procHidGetGUID.Find(); err != nil {
		return hidInterfaceGUID
	}
	var g windows.GUID
	_, _, _ = procHidGetGUID.Call(uintptr(unsafe.Pointer(&g)))
	return g
}

func (nativeAPI) SetWakeEnabled(identifier string) error {
	if err := procSetDevState.Find(); err != nil {
		return syserr.New(syserr.ErrUnsupported, "DevicePowerSetDeviceState", err)
	}
	p, err := windows.UTF16PtrFromString(identifier)
	if err != nil {
		return syserr.New(syserr.ErrNotApplicable, "DevicePowerSetDeviceState", err)
	}
	r, _, _ := procSetDevState.Call(uintptr(unsafe.Pointer(p)), devicePowerSetWakeEnabled, 0)
	return syserr.FromCode("DevicePowerSetDeviceState", uint32(r))
}

func errnoCode(err error) uint32 {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
