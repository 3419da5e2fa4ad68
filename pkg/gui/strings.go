package gui

const (
	appTooltip = "LAD - Laptop as Desktop"

	quitTooltip = `Quit the LAD tray app, but keep the LAD daemon running.

The daemon keeps managing lid, sleep and display settings without the tray app.`
	stopTooltip = `Stop the LAD daemon. Every setting LAD changed is restored first.`

	reapplyTooltip      = "Run the settings bundle for the current state again"
	ejectTooltip        = "Restore laptop settings before unplugging, without waiting for the dock to go away"
	safetyRevertTooltip = "Restore the extended display layout (same as Ctrl+Alt+Shift+D)"
	guardTooltip        = "Limit charging to 80% while docked"
)
