package probe

import (
	"strings"

	"github.com/ladapp/lad/pkg/display"
)

// IsInternal reports whether m carries a strong internal-panel signature.
// Anything without one is treated as external.
func IsInternal(m display.Monitor) bool {
	id := strings.ToUpper(m.DeviceID)
	desc := strings.ToUpper(m.DeviceString)
	adapter := strings.ToUpper(m.AdapterString)

	if strings.Contains(desc, "BUILT-IN") || strings.Contains(desc, "INTERNAL") {
		return true
	}
	if strings.Contains(id, `MONITOR\DEFAULT`) {
		return true
	}
	onIntegrated := strings.Contains(adapter, "INTEL") && strings.Contains(adapter, "HD")
	generic := len(desc) < 30 || strings.Contains(desc, "GENERIC")
	return len(id) < 15 && onIntegrated && generic
}

// CountExternal returns the number of active monitors that are not internal
// panels. A single active unclassified monitor only counts as external on a
// machine with a battery: a laptop with its panel on would show two, while a
// desktop's only monitor is its primary screen.
func CountExternal(monitors []display.Monitor, hasBattery bool) (external, active int) {
	internal := 0
	for _, m := range monitors {
		if !m.Active {
			continue
		}
		active++
		if IsInternal(m) {
			internal++
		} else {
			external++
		}
	}
	if active == 1 && internal == 0 && !hasBattery {
		external = 0
	}
	return external, active
}
