// Package types holds the payloads exchanged between the daemon and its
// clients.
package types

import "time"

// Status is a snapshot of the readiness state machine.
type Status struct {
	Ready          bool          `json:"ready"`
	OnAC           bool          `json:"onAC"`
	ExternalCount  int           `json:"externalMonitors"`
	ActiveMonitors int           `json:"activeMonitors"`
	LastEvaluated  time.Time     `json:"lastEvaluated"`
	LastTransition time.Time     `json:"lastTransition"`
	LastResume     time.Time     `json:"lastResume"`
	ResumePending  bool          `json:"resumePending"`
	GuardEnabled   bool          `json:"batteryGuardEnabled"`
	WakeDevices    []string      `json:"wakeDevices"`
	LastBundle     *BundleReport `json:"lastBundle,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status
	// RecentPolls is the number of uninterrupted polls in the last minute.
	RecentPolls int    `json:"recentPolls"`
	Version     string `json:"version"`
}

// Readiness is returned by GET /readiness. It is read fresh from the system
// and may differ from Status until the next poll.
type Readiness struct {
	Ready            bool `json:"ready"`
	OnAC             bool `json:"onAC"`
	ExternalMonitors int  `json:"externalMonitors"`
	ActiveMonitors   int  `json:"activeMonitors"`
}

// GuardInfo is returned by GET /battery-guard/instructions.
type GuardInfo struct {
	Enabled      bool   `json:"enabled"`
	Supported    bool   `json:"supported"`
	Manufacturer string `json:"manufacturer"`
	Method       string `json:"method"`
	Instructions string `json:"instructions"`
}

// Baseline is returned by GET /baseline. Nil fields were never captured.
type Baseline struct {
	HibernateTimeout *uint32 `json:"hibernateTimeout,omitempty"`
	PowerScheme      *string `json:"powerScheme,omitempty"`
	PowerSchemeName  string  `json:"powerSchemeName,omitempty"`
}
