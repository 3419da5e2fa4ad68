package chargelimit

import (
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/ladapp/lad/pkg/syserr"
)

// OEM is a normalized manufacturer key.
type OEM string

const (
	OEMUnknown OEM = ""
	OEMLenovo  OEM = "LENOVO"
	OEMASUS    OEM = "ASUS"
	OEMDell    OEM = "DELL"
	OEMHP      OEM = "HP"
)

const (
	nsWMI     = `root\WMI`
	nsHPBIOS  = `root\HP\InstrumentedBIOS`
	asusDevID = 0x00120057
)

// Strategy is the charge-limit procedure for one OEM.
type Strategy struct {
	OEM OEM
	// Label is used in logs and status output.
	Label string
	// Namespaces are probed in order for Class.
	Namespaces   []string
	Class        string
	Instructions string

	set func(api API, limit int) error
}

// Set applies limit, where 100 means no limit.
func (s Strategy) Set(api API, limit int) error {
	if s.set == nil {
		return syserr.Newf(syserr.ErrUnsupported, "SetChargeLimit", "no charge-limit procedure for %s", s.Label)
	}
	return s.set(api, limit)
}

var strategies = map[OEM]Strategy{
	OEMLenovo: {
		OEM:          OEMLenovo,
		Label:        "Lenovo Conservation Mode",
		Namespaces:   []string{nsWMI},
		Class:        "Lenovo_BiosSetting",
		Instructions: instructionsLenovo,
		set:          setLenovo,
	},
	OEMASUS: {
		OEM:          OEMASUS,
		Label:        "ASUS Battery Health Charging",
		Namespaces:   []string{nsWMI},
		Class:        "AsusAtkWmi_WMNB",
		Instructions: instructionsASUS,
		set:          setASUS,
	},
	OEMDell: {
		OEM:          OEMDell,
		Label:        "Dell Battery Charge Threshold",
		Namespaces:   []string{nsWMI},
		Class:        "DellSmbiosBattery",
		Instructions: instructionsDell,
		set:          setDell,
	},
	OEMHP: {
		OEM:          OEMHP,
		Label:        "HP Battery Health Manager",
		Namespaces:   []string{nsHPBIOS, nsWMI},
		Class:        "HP_BIOSSetting",
		Instructions: instructionsHP,
		set:          setHP,
	},
}

var genericStrategy = Strategy{
	OEM:          OEMUnknown,
	Label:        "generic",
	Instructions: instructionsGeneric,
}

// oemPriority is the order manufacturer tokens are matched in.
var oemPriority = []OEM{OEMLenovo, OEMASUS, OEMDell, OEMHP}

// LookupOEM normalizes a manufacturer string to an OEM key.
func LookupOEM(manufacturer string) OEM {
	m := normalize(manufacturer)
	if m == "" {
		return OEMUnknown
	}
	for _, oem := range oemPriority {
		if strings.Contains(m, string(oem)) {
			return oem
		}
	}
	if strings.Contains(m, "HEWLETT") {
		return OEMHP
	}
	return OEMUnknown
}

func normalize(manufacturer string) string {
	return strings.ToUpper(strings.TrimSpace(manufacturer))
}

// StrategyFor returns the strategy for oem, or the generic one.
func StrategyFor(oem OEM) (Strategy, bool) {
	s, ok := strategies[oem]
	if !ok {
		return genericStrategy, false
	}
	return s, true
}

func setLenovo(api API, limit int) error {
	setting := "ConservationMode,Enabled"
	if limit >= 100 {
		setting = "ConservationMode,Disabled"
	}
	return invoke(api, Call{
		Namespace: nsWMI,
		Class:     "Lenovo_SetBiosSetting",
		Method:    "SetBiosSetting",
		Args:      []Arg{{Name: "CurrentSetting", Value: setting}},
		Result:    "Return",
	})
}

// asusMode maps a limit to the ASUS charging mode: 0 full capacity,
// 1 balanced (80%), 2 maximum lifespan (60%).
func asusMode(limit int) uint32 {
	switch {
	case limit >= 100:
		return 0
	case limit >= 80:
		return 1
	default:
		return 2
	}
}

func setASUS(api API, limit int) error {
	return invoke(api, Call{
		Namespace: nsWMI,
		Class:     "AsusAtkWmi_WMNB",
		Method:    "DEVS",
		Args: []Arg{
			{Name: "Device_ID", Value: uint32(asusDevID)},
			{Name: "Control_status", Value: asusMode(limit)},
		},
		Result: "returnValue",
	})
}

// dellThresholds returns the start and stop charging thresholds for limit.
func dellThresholds(limit int) (start, stop uint32) {
	return uint32(max(50, limit-5)), uint32(limit)
}

func setDell(api API, limit int) error {
	start, stop := dellThresholds(limit)
	return invoke(api, Call{
		Namespace: nsWMI,
		Class:     "DellSmbiosBattery",
		Method:    "SetBatteryChargeThreshold",
		Args: []Arg{
			{Name: "StartThreshold", Value: start},
			{Name: "StopThreshold", Value: stop},
		},
		Result: "ReturnValue",
	})
}

const (
	hpMaximizeHealth = "Maximize My Battery Health"
	hpMinimizeHealth = "Minimize Battery Health Management"
)

func setHP(api API, limit int) error {
	value := hpMaximizeHealth
	if limit >= 100 {
		value = hpMinimizeHealth
	}

	var lastErr error
	for _, ns := range []string{nsHPBIOS, nsWMI} {
		name, err := api.InstanceProperty(ns, "HP_BIOSSetting", "Name", "Battery")
		if err != nil {
			lastErr = err
			continue
		}
		err = invoke(api, Call{
			Namespace:     ns,
			Class:         "HP_BIOSSetting",
			Method:        "SetBiosSetting",
			WhereProperty: "Name",
			WhereContains: name,
			Args: []Arg{
				{Name: "Name", Value: name},
				{Name: "Value", Value: value},
			},
			Result: "ReturnValue",
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func invoke(api API, c Call) error {
	op := c.Class + "." + c.Method
	code, err := api.Invoke(c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to invoke %s", op)
	}
	if code != 0 {
		return &syserr.Error{Kind: syserr.ErrTransient, Op: op, Code: code}
	}
	return nil
}
