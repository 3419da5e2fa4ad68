package events

import "encoding/json"

// Event names.
const (
	PowerLineChanged    = "power.line"
	MonitorCountChanged = "monitor.count"
	ReadinessChanged    = "readiness.changed"
	BundleApplied       = "bundle.applied"
	SystemSuspend       = "system.suspend"
	SystemResume        = "system.resume"
	BatteryGuardChanged = "battery.guard"
	SafetyRevert        = "safety.revert"
)

// Event is a named event with a JSON payload. The same shape is used
// in-process and on the SSE stream.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// PowerLineEvent is the payload for power.line.
type PowerLineEvent struct {
	OnAC bool  `json:"onAC"`
	Ts   int64 `json:"ts"`
}

// MonitorCountEvent is the payload for monitor.count.
type MonitorCountEvent struct {
	Old int   `json:"old"`
	New int   `json:"new"`
	Ts  int64 `json:"ts"`
}

// ReadinessEvent is the payload for readiness.changed.
type ReadinessEvent struct {
	Ready    bool  `json:"ready"`
	OnAC     bool  `json:"onAC"`
	Monitors int   `json:"monitors"`
	Forced   bool  `json:"forced"`
	Ts       int64 `json:"ts"`
}

// BundleEvent is the payload for bundle.applied.
type BundleEvent struct {
	Direction string `json:"direction"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	TookMs    int64  `json:"tookMs"`
}

// MessageEvent is a payload carrying only a message, used for suspend,
// resume, safety revert and battery guard notifications.
type MessageEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into T. It ignores the event name. If
// Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.MonitorCountEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Old, payload.New)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
