// Package peripheral keeps keyboards and mice able to wake the machine and
// toggles USB selective suspend on the active power scheme.
package peripheral

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/powerscheme"
)

// Candidate is one HID node as reported by the OS. Any of the string fields
// may be empty.
type Candidate struct {
	// InstancePath is the device instance ID, e.g.
	// HID\VID_046D&PID_C534&MI_00\7&1A2B3C4D&0&0000.
	InstancePath string
	// Description is the device description or friendly name from the
	// device registry.
	Description  string
	Manufacturer string
	Product      string
	VendorID     uint16
	ProductID    uint16
	UsagePage    uint16
	Usage        uint16
	// ContainerID is shared by every node of one physical device.
	ContainerID string
	// Opened reports whether a handle to the device could be opened.
	Opened bool
}

// noContainer is the container ID Windows gives to devices it cannot
// attribute to a physical box, such as built-in ones.
const noContainer = "{00000000-0000-0000-FFFF-FFFFFFFFFFFF}"

// physicalKey identifies the physical device c belongs to.
func (c Candidate) physicalKey() string {
	if id := strings.ToUpper(c.ContainerID); id != "" && id != noContainer {
		return id
	}
	return fmt.Sprintf("%04X:%04X:%s", c.VendorID, c.ProductID, c.InstancePath)
}

// Name returns the self-reported "manufacturer product" string, or a
// VID/PID label when the device reports neither.
func (c Candidate) Name() string {
	name := strings.TrimSpace(c.Manufacturer + " " + c.Product)
	if name == "" {
		return fmt.Sprintf("HID Device (VID:%04X, PID:%04X)", c.VendorID, c.ProductID)
	}
	return name
}

// DeviceRecord is a HID device found during one enumeration pass.
type DeviceRecord struct {
	Name         string `json:"name"`
	InstancePath string `json:"instancePath,omitempty"`
	Description  string `json:"description,omitempty"`
	VendorID     uint16 `json:"vendorId"`
	ProductID    uint16 `json:"productId"`
	IsKeyboard   bool   `json:"isKeyboard"`
	IsMouse      bool   `json:"isMouse"`
	Opened       bool   `json:"opened"`
}

// API is the OS device surface.
type API interface {
	EnumerateHID() ([]Candidate, error)
	// SetWakeEnabled enables wake for the device named by identifier, which
	// may be an instance path, a description, or a display name.
	SetWakeEnabled(identifier string) error
}

// SchemeWriter writes a value on the active power scheme and re-applies it.
type SchemeWriter interface {
	WriteActiveSchemeValue(subgroup, setting uuid.UUID, value uint32) error
}

const (
	usbSuspendDisabled uint32 = 0
	usbSuspendEnabled  uint32 = 1
)

type Manager struct {
	api    API
	scheme SchemeWriter
	log    logrus.FieldLogger
}

// New returns a Manager backed by the operating system.
func New(scheme SchemeWriter, log logrus.FieldLogger) *Manager {
	return NewWithAPI(NativeAPI(), scheme, log)
}

func NewWithAPI(api API, scheme SchemeWriter, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{api: api, scheme: scheme, log: log}
}

// EnableWakeForAllPointingAndKeyboardDevices enables wake on every present
// HID device and returns the names of the physical devices that succeeded.
// Each node is tried with its instance path, then its description, then its
// name. Nodes that could not be opened are skipped. An error is returned only
// when enumeration itself fails.
func (m *Manager) EnableWakeForAllPointingAndKeyboardDevices() ([]string, error) {
	start := time.Now()
	candidates, err := m.api.EnumerateHID()
	if err != nil {
		m.log.Warnf("PERIPHERAL: failed to enumerate HID devices: %v", err)
		return nil, err
	}

	var enabled []string
	seen := map[string]bool{}
	for _, c := range candidates {
		name := c.Name()
		if !c.Opened {
			m.log.Warnf("PERIPHERAL: skipping %s, no openable handle (%s)", name, orNA(c.InstancePath))
			continue
		}
		ident, ok := m.enableWake(c)
		if !ok {
			continue
		}
		m.log.Debugf("PERIPHERAL: wake enabled for %s using %s", name, ident)
		key := c.physicalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		enabled = append(enabled, name)
	}

	m.log.WithField("took", time.Since(start)).Infof("PERIPHERAL: enabled wake for %d of %d HID device(s)", len(enabled), len(candidates))
	return enabled, nil
}

// enableWake tries each identifier of c in order and returns the one that
// worked.
func (m *Manager) enableWake(c Candidate) (string, bool) {
	name := c.Name()
	tiers := []struct {
		label string
		ident string
	}{
		{"instance path", c.InstancePath},
		{"device description", c.Description},
		{"device name", name},
	}

	tried := 0
	var lastErr error
	for _, t := range tiers {
		if t.ident == "" {
			continue
		}
		tried++
		err := m.api.SetWakeEnabled(t.ident)
		if err == nil {
			if tried > 1 {
				m.log.Infof("PERIPHERAL: enabled wake for %s using %s fallback (%s)", name, t.label, t.ident)
			} else {
				m.log.Infof("PERIPHERAL: enabled wake for %s (%s: %s)", name, t.label, t.ident)
			}
			return t.ident, true
		}
		lastErr = err
		m.log.Debugf("PERIPHERAL: %s method failed for %s (%s): %v", t.label, name, t.ident, err)
	}

	if tried == 0 {
		m.log.Warnf("PERIPHERAL: skipping device with no usable identifier (VID:%04X, PID:%04X)", c.VendorID, c.ProductID)
		return "", false
	}
	m.log.Warnf("PERIPHERAL: all wake enablement methods failed for %s. Instance Path: %s, Description: %s: %v",
		name, orNA(c.InstancePath), orNA(c.Description), lastErr)
	return "", false
}

// Devices lists the present HID devices without changing anything.
func (m *Manager) Devices() ([]DeviceRecord, error) {
	candidates, err := m.api.EnumerateHID()
	if err != nil {
		return nil, err
	}

	records := make([]DeviceRecord, 0, len(candidates))
	for _, c := range candidates {
		kb, mouse := Classify(c)
		records = append(records, DeviceRecord{
			Name:         c.Name(),
			InstancePath: c.InstancePath,
			Description:  c.Description,
			VendorID:     c.VendorID,
			ProductID:    c.ProductID,
			IsKeyboard:   kb,
			IsMouse:      mouse,
			Opened:       c.Opened,
		})
	}
	return records, nil
}

// DisableUSBSelectiveSuspend stops Windows from powering down idle USB ports.
func (m *Manager) DisableUSBSelectiveSuspend() error {
	return m.setUSBSelectiveSuspend(usbSuspendDisabled)
}

// EnableUSBSelectiveSuspend restores the Windows default.
func (m *Manager) EnableUSBSelectiveSuspend() error {
	return m.setUSBSelectiveSuspend(usbSuspendEnabled)
}

func (m *Manager) setUSBSelectiveSuspend(value uint32) error {
	state := "enabled"
	if value == usbSuspendDisabled {
		state = "disabled"
	}

	start := time.Now()
	err := m.scheme.WriteActiveSchemeValue(powerscheme.SubgroupUSB, powerscheme.USBSelectiveSuspend, value)
	entry := m.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("PERIPHERAL: failed to set USB selective suspend to %s: %v", state, err)
		return err
	}
	entry.Infof("PERIPHERAL: USB selective suspend %s", state)
	return nil
}

// HID generic desktop usages.
const (
	usagePageGenericDesktop = 0x01
	usagePointer            = 0x01
	usageMouse              = 0x02
	usageKeyboard           = 0x06
	usageKeypad             = 0x07
)

// Classify reports whether c looks like a keyboard, a mouse, or both. The
// HID usage decides when it is known; otherwise the name does.
func Classify(c Candidate) (keyboard, mouse bool) {
	if c.UsagePage == usagePageGenericDesktop {
		switch c.Usage {
		case usageKeyboard, usageKeypad:
			return true, false
		case usageMouse, usagePointer:
			return false, true
		}
	}
	return ClassifyName(c.Name())
}

// ClassifyName guesses the device type from its name. A name that says
// neither is reported as both.
func ClassifyName(name string) (keyboard, mouse bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "KEYBOARD") || strings.Contains(upper, "KB"):
		return true, false
	case strings.Contains(upper, "MOUSE") || strings.Contains(upper, "POINTING"):
		return false, true
	default:
		return true, true
	}
}

var vidPIDPattern = regexp.MustCompile(`(?i)VID_([0-9A-F]{4})&PID_([0-9A-F]{4})`)

// ParseVIDPID extracts the vendor and product IDs from an instance path.
func ParseVIDPID(instancePath string) (vid, pid uint16, ok bool) {
	m := vidPIDPattern.FindStringSubmatch(instancePath)
	if m == nil {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(m[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(m[2], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// InstancePathFromInterfacePath converts a HID interface path such as
// \\?\hid#vid_046d&pid_c534&mi_00#7&1a2b3c4d&0&0000#{4d1e55b2-...} into the
// device instance ID it belongs to.
func InstancePathFromInterfacePath(path string) string {
	p := strings.TrimPrefix(path, `\\?\`)
	if i := strings.LastIndex(p, "#{"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(p, "#", `\`))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
