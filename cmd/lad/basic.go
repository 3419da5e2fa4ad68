package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewReadyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ready",
		Short:   "Check whether the laptop is docked",
		GroupID: gBasic,
		Long: `Check whether the laptop is docked.

The laptop is docked (LAD ready) when it is on AC power and at least one external monitor is active. This reads the live state, not the daemon's last evaluation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := apiClient.GetReadiness()
			if err != nil {
				return err
			}

			cmd.Printf("LAD ready: %s\n", bool2Text(r.Ready))
			cmd.Printf("  On AC power: %s\n", bool2Text(r.OnAC))
			cmd.Printf("  External monitors: %s (%d active in total)\n", bold("%d", r.ExternalMonitors), r.ActiveMonitors)
			return nil
		},
	}
}

func NewReapplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reapply",
		Short:   "Apply the settings for the current state again",
		GroupID: gBasic,
		Long: `Apply the settings for the current state again.

Use this if another program or a Windows update changed the lid action, power plan or display layout behind LAD's back.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := apiClient.Reapply()
			if err != nil {
				return fmt.Errorf("failed to re-apply settings: %v", err)
			}
			printReport(cmd, report)
			return nil
		},
	}
}

func NewEjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "eject",
		Short:   "Restore laptop settings before undocking",
		GroupID: gBasic,
		Long: `Restore laptop settings before undocking.

Closing the lid will sleep the laptop again, hibernation and the power plan are restored and the display layout goes back to extended. LAD keeps its docked state, so plugging back in does not re-apply anything until you undock and dock again, or run 'lad reapply'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := apiClient.Eject()
			if err != nil {
				return fmt.Errorf("failed to eject: %v", err)
			}
			printReport(cmd, report)
			logrus.Info("safe to unplug")
			return nil
		},
	}
}

func NewSafetyRevertCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "safety-revert",
		Short:   "Restore the extended display layout",
		GroupID: gBasic,
		Long: `Restore the extended display layout right away.

This is the same as pressing Ctrl+Alt+Shift+D. Use it when the built-in screen stays dark after undocking.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SafetyRevert()
			if err != nil {
				return fmt.Errorf("failed to restore display layout: %v", err)
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	}
}

func NewBatteryGuardCommand() *cobra.Command {
	cmd := newEnableDisableCommand(
		"battery-guard",
		"Limit charging to 80% while docked",
		`Limit charging to 80% while docked.

Keeping a laptop at 100% on the charger all day wears the battery. The battery health guard asks the firmware to stop charging at 80% while LAD is ready. Disabling it restores charging to 100%.

Only some manufacturers expose a charge limit LAD can set. On other machines, 'lad battery-guard instructions' explains how to set it in the manufacturer's app.`,
		func() (string, error) { return apiClient.SetBatteryGuard(true) },
		func() (string, error) { return apiClient.SetBatteryGuard(false) },
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "instructions",
		Short: "Show how the charge limit is set on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := apiClient.GetBatteryGuardInstructions()
			if err != nil {
				return err
			}

			cmd.Printf("Battery health guard: %s\n", bool2Text(info.Enabled))
			if info.Manufacturer != "" {
				cmd.Printf("  Manufacturer: %s\n", bold("%s", info.Manufacturer))
			}
			if info.Supported {
				cmd.Printf("  Method: %s\n", bold("%s", info.Method))
			} else {
				cmd.Printf("  Method: %s\n", bold("manual"))
			}
			cmd.Println()
			cmd.Println(info.Instructions)
			return nil
		},
	})

	return cmd
}
