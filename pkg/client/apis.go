package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/peripheral"
	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/types"
)

func (c *Client) GetStatus() (*types.StatusResponse, error) {
	return getJSON[types.StatusResponse](c, "/status", "status")
}

func (c *Client) GetReadiness() (*types.Readiness, error) {
	return getJSON[types.Readiness](c, "/readiness", "readiness")
}

func (c *Client) SetBatteryGuard(enabled bool) (string, error) {
	ret, err := c.Put("/battery-guard", strconv.FormatBool(enabled))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to set battery health guard")
	}
	return parseStringResponse(ret)
}

func (c *Client) GetBatteryGuardInstructions() (*types.GuardInfo, error) {
	return getJSON[types.GuardInfo](c, "/battery-guard/instructions", "battery health guard instructions")
}

// Reapply forces the bundle matching the current readiness to run again.
func (c *Client) Reapply() (*types.BundleReport, error) {
	return postJSON[types.BundleReport](c, "/reapply", "re-apply settings")
}

// Eject restores laptop-friendly settings without changing readiness.
func (c *Client) Eject() (*types.BundleReport, error) {
	return postJSON[types.BundleReport](c, "/eject", "eject")
}

func (c *Client) SafetyRevert() (string, error) {
	ret, err := c.Post("/safety-revert", "")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to restore display topology")
	}
	return parseStringResponse(ret)
}

func (c *Client) GetDevices() ([]peripheral.DeviceRecord, error) {
	ret, err := getJSON[[]peripheral.DeviceRecord](c, "/devices", "devices")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

// GetScreens returns the human-readable monitor listing.
func (c *Client) GetScreens() (string, error) {
	ret, err := c.Get("/screens")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get screens")
	}
	return parseStringResponse(ret)
}

func (c *Client) GetMonitors() ([]display.Monitor, error) {
	ret, err := getJSON[[]display.Monitor](c, "/screens?format=json", "monitors")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

func (c *Client) GetBattery() (*probe.BatteryStatus, error) {
	return getJSON[probe.BatteryStatus](c, "/battery", "battery status")
}

func (c *Client) GetFans() (map[string]uint64, error) {
	ret, err := getJSON[map[string]uint64](c, "/fans", "fan speeds")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

func (c *Client) GetBaseline() (*types.Baseline, error) {
	return getJSON[types.Baseline](c, "/baseline", "baseline")
}

// ResetBaseline forgets the captured power baselines.
func (c *Client) ResetBaseline() (string, error) {
	ret, err := c.Delete("/baseline")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to reset baseline")
	}
	return parseStringResponse(ret)
}

// GetLogs returns the last n daemon log lines. n <= 0 returns all buffered
// lines.
func (c *Client) GetLogs(n int) ([]string, error) {
	path := "/logs"
	if n > 0 {
		path += "?lines=" + strconv.Itoa(n)
	}
	ret, err := getJSON[[]string](c, path, "logs")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[config.RawFileConfig](c, "/config", "config")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return parseStringResponse(ret)
}

// Shutdown asks the daemon to revert everything and exit.
func (c *Client) Shutdown() (string, error) {
	ret, err := c.Post("/shutdown", "")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to shut down daemon")
	}
	return parseStringResponse(ret)
}

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func postJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Post(path, "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to %s", what)
	}
	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s response", what)
	}
	return &v, nil
}

// parseStringResponse decodes a JSON string body.
func parseStringResponse(resp string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(resp), &s); err != nil {
		return "", pkgerrors.Errorf("unexpected response: %s", resp)
	}
	return s, nil
}
