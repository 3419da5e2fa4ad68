package gui

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ladapp/lad/pkg/types"
)

var (
	//go:embed icons/ready.ico
	iconReady []byte
	//go:embed icons/idle.ico
	iconIdle []byte
	//go:embed icons/offline.ico
	iconOffline []byte
)

func iconFor(st *types.StatusResponse) []byte {
	switch {
	case st == nil:
		return iconOffline
	case st.Ready:
		return iconReady
	default:
		return iconIdle
	}
}

func stateLine(st *types.StatusResponse) string {
	if st == nil {
		return "LAD: Daemon not running"
	}
	if st.Ready {
		return "LAD: Ready"
	}
	return "LAD: Not ready"
}

func powerLine(st *types.StatusResponse) string {
	if st == nil {
		return "Power: -"
	}
	if st.OnAC {
		return "Power: AC"
	}
	return "Power: Battery"
}

func monitorLine(st *types.StatusResponse) string {
	if st == nil {
		return "External Monitors: -"
	}
	return fmt.Sprintf("External Monitors: %d", st.ExternalCount)
}

// bundleLine summarizes the last bundle, e.g. "Last: enable, 6 ok, 1 skipped".
func bundleLine(r *types.BundleReport) string {
	if r == nil {
		return "Last: -"
	}
	parts := []string{string(r.Direction)}
	if n := r.Succeeded(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d ok", n))
	}
	if n := r.Failed(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if n := len(r.Steps) - r.Succeeded() - r.Failed(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	return "Last: " + strings.Join(parts, ", ")
}

func tooltipFor(st *types.StatusResponse) string {
	if st == nil {
		return appTooltip + " (daemon not running)"
	}
	power := "battery"
	if st.OnAC {
		power = "AC"
	}
	noun := "monitors"
	if st.ExternalCount == 1 {
		noun = "monitor"
	}
	state := "not ready"
	if st.Ready {
		state = "ready"
	}
	return fmt.Sprintf("%s - %s (%s, %d external %s)", appTooltip, state, power, st.ExternalCount, noun)
}

// failedSteps lists the names of failed steps with their hints.
func failedSteps(r *types.BundleReport) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, s := range r.Steps {
		if s.Outcome != types.OutcomeFailed {
			continue
		}
		line := s.Step
		if s.Hint != "" {
			line += " (" + s.Hint + ")"
		}
		out = append(out, line)
	}
	return out
}
