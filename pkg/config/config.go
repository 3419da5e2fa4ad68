package config

import "time"

type Config interface {
	FirstRun() bool
	// OriginalHibernateTimeout returns the persisted hibernate timeout
	// baseline in seconds. ok is false if none was captured.
	OriginalHibernateTimeout() (seconds uint32, ok bool)
	// OriginalPowerSchemeGUID returns the persisted power scheme baseline,
	// or an empty string if none was captured.
	OriginalPowerSchemeGUID() string
	BatteryHealthGuardEnabled() bool
	LastVersion() string
	SelectedKeyboardInstancePath() string
	SelectedMouseInstancePath() string
	LaptopOrientation() string
	AllowNonRootAccess() bool
	PollInterval() time.Duration
	ResumeDelay() time.Duration
	LiveBaselineFallback() bool

	SetFirstRun(bool)
	SetOriginalHibernateTimeout(uint32)
	SetOriginalPowerSchemeGUID(string)
	// ClearBaselines forgets both baselines. Normal operation never calls it.
	ClearBaselines()
	SetBatteryHealthGuardEnabled(bool)
	SetLastVersion(string)
	SetSelectedKeyboardInstancePath(string)
	SetSelectedMouseInstancePath(string)
	SetLaptopOrientation(string)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
