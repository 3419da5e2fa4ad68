package gui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/client"
	"github.com/ladapp/lad/pkg/events"
	"github.com/ladapp/lad/pkg/types"
)

const (
	refreshInterval   = 5 * time.Second
	resubscribeDelay  = 5 * time.Second
	maxMessageDisplay = 80
)

// menuController owns the tray menu and keeps it in sync with the daemon.
type menuController struct {
	api *client.Client

	mu sync.Mutex

	stateItem   *systray.MenuItem
	powerItem   *systray.MenuItem
	monitorItem *systray.MenuItem
	bundleItem  *systray.MenuItem
	messageItem *systray.MenuItem

	reapplyItem      *systray.MenuItem
	ejectItem        *systray.MenuItem
	safetyRevertItem *systray.MenuItem

	guardItem       *systray.MenuItem
	guardMethodItem *systray.MenuItem

	stopItem *systray.MenuItem
	quitItem *systray.MenuItem

	// cancel stops the refresh loop and the event subscription.
	cancel context.CancelFunc
}

func newMenuController(api *client.Client) *menuController {
	return &menuController{api: api}
}

func (c *menuController) onReady() {
	systray.SetIcon(iconOffline)
	systray.SetTitle("LAD")
	systray.SetTooltip(appTooltip)

	c.stateItem = systray.AddMenuItem("LAD: Connecting...", "Current LAD state")
	c.stateItem.Disable()
	c.powerItem = systray.AddMenuItem("Power: -", "Power source")
	c.powerItem.Disable()
	c.monitorItem = systray.AddMenuItem("External Monitors: -", "Active external monitors")
	c.monitorItem.Disable()
	c.bundleItem = systray.AddMenuItem("Last: -", "Result of the last settings bundle")
	c.bundleItem.Disable()
	c.messageItem = systray.AddMenuItem("", "")
	c.messageItem.Disable()
	c.messageItem.Hide()

	systray.AddSeparator()

	c.reapplyItem = systray.AddMenuItem("Re-apply Settings", reapplyTooltip)
	c.ejectItem = systray.AddMenuItem("Quick Eject", ejectTooltip)
	c.safetyRevertItem = systray.AddMenuItem("Restore Displays", safetyRevertTooltip)

	systray.AddSeparator()

	c.guardItem = systray.AddMenuItemCheckbox("Battery Health Guard", guardTooltip, false)
	c.guardMethodItem = systray.AddMenuItem("Method: -", "")
	c.guardMethodItem.Disable()

	systray.AddSeparator()

	c.stopItem = systray.AddMenuItem("Stop LAD Daemon", stopTooltip)
	c.quitItem = systray.AddMenuItem("Quit", quitTooltip)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.refresh()
	c.refreshGuard()

	go c.handleClicks(ctx)
	go c.refreshLoop(ctx)
	go c.eventBridge(ctx)
}

func (c *menuController) onExit() {
	if c.cancel != nil {
		c.cancel()
	}
	logrus.Info("lad gui exiting")
}

func (c *menuController) handleClicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reapplyItem.ClickedCh:
			report, err := c.api.Reapply()
			c.showBundleResult("Re-apply", report, err)
		case <-c.ejectItem.ClickedCh:
			report, err := c.api.Eject()
			c.showBundleResult("Eject", report, err)
		case <-c.safetyRevertItem.ClickedCh:
			msg, err := c.api.SafetyRevert()
			c.showResult("Restore displays", msg, err)
		case <-c.guardItem.ClickedCh:
			msg, err := c.api.SetBatteryGuard(!c.guardItem.Checked())
			c.showResult("Battery guard", msg, err)
			c.refreshGuard()
		case <-c.stopItem.ClickedCh:
			msg, err := c.api.Shutdown()
			c.showResult("Stop daemon", msg, err)
		case <-c.quitItem.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (c *menuController) refreshLoop(ctx context.Context) {
	t := time.NewTicker(refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.refresh()
		}
	}
}

// eventBridge refreshes the menu as soon as the daemon reports a change, and
// resubscribes while the daemon is down.
func (c *menuController) eventBridge(ctx context.Context) {
	for {
		err := c.api.Subscribe(ctx, func(ev events.Event) {
			logrus.WithFields(logrus.Fields{
				"event": ev.Name,
				"data":  string(ev.Data),
			}).Debug("new event")

			switch ev.Name {
			case events.BatteryGuardChanged:
				c.refreshGuard()
			case events.SafetyRevert:
				payload, err := events.DecodeAs[events.MessageEvent](ev)
				if err == nil {
					c.setMessage("Safety: " + payload.Message)
				}
			}
			c.refresh()
		})
		if err != nil {
			logrus.WithError(err).Debug("event subscription ended")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

func (c *menuController) refresh() {
	st, err := c.api.GetStatus()
	if err != nil {
		logrus.WithError(err).Debug("failed to get status")
		st = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	systray.SetIcon(iconFor(st))
	systray.SetTooltip(tooltipFor(st))
	c.stateItem.SetTitle(stateLine(st))
	c.powerItem.SetTitle(powerLine(st))
	c.monitorItem.SetTitle(monitorLine(st))

	online := st != nil
	for _, it := range []*systray.MenuItem{c.reapplyItem, c.ejectItem, c.safetyRevertItem, c.guardItem, c.stopItem} {
		if online {
			it.Enable()
		} else {
			it.Disable()
		}
	}
	if !online {
		c.bundleItem.SetTitle(bundleLine(nil))
		return
	}

	c.bundleItem.SetTitle(bundleLine(st.LastBundle))
	if failed := failedSteps(st.LastBundle); len(failed) > 0 {
		c.bundleItem.SetTooltip("Failed: " + strings.Join(failed, "; "))
	} else {
		c.bundleItem.SetTooltip("Result of the last settings bundle")
	}
	if st.GuardEnabled {
		c.guardItem.Check()
	} else {
		c.guardItem.Uncheck()
	}
}

func (c *menuController) refreshGuard() {
	info, err := c.api.GetBatteryGuardInstructions()
	if err != nil {
		logrus.WithError(err).Debug("failed to get battery guard info")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if info.Enabled {
		c.guardItem.Check()
	} else {
		c.guardItem.Uncheck()
	}
	method := info.Method
	if !info.Supported {
		method = "manual (" + info.Manufacturer + ")"
	}
	c.guardMethodItem.SetTitle("Method: " + method)
	c.guardMethodItem.SetTooltip(info.Instructions)
}

func (c *menuController) showBundleResult(action string, report *types.BundleReport, err error) {
	if err != nil {
		c.showResult(action, "", err)
		return
	}
	msg := bundleLine(report)
	if failed := failedSteps(report); len(failed) > 0 {
		msg += " (" + strings.Join(failed, ", ") + ")"
	}
	c.showResult(action, msg, nil)
	c.refresh()
}

func (c *menuController) showResult(action, msg string, err error) {
	if err != nil {
		logrus.WithError(err).Errorf("%s failed", action)
		c.setMessage(action + " failed: " + err.Error())
		return
	}
	logrus.Infof("%s: %s", action, msg)
	c.setMessage(action + ": " + msg)
}

func (c *menuController) setMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messageItem.SetTooltip(msg)
	if len(msg) > maxMessageDisplay {
		msg = msg[:maxMessageDisplay-3] + "..."
	}
	c.messageItem.SetTitle(msg)
	c.messageItem.Show()
}
