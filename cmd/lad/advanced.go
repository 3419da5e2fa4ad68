package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/client"
)

func NewDevicesCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "devices",
		Short:   "List USB keyboards and mice",
		GroupID: gAdvanced,
		Long: `List the USB keyboards and mice LAD allows to wake the laptop while docked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := apiClient.GetDevices()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, devices)
			}

			if len(devices) == 0 {
				cmd.Println("No USB keyboards or mice found.")
				return nil
			}
			for _, d := range devices {
				kind := "other"
				switch {
				case d.IsKeyboard && d.IsMouse:
					kind = "keyboard+mouse"
				case d.IsKeyboard:
					kind = "keyboard"
				case d.IsMouse:
					kind = "mouse"
				}
				cmd.Printf("%s (%s) VID_%04X PID_%04X\n", bold("%s", d.Name), kind, d.VendorID, d.ProductID)
				if d.InstancePath != "" {
					cmd.Printf("  %s\n", d.InstancePath)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func NewScreensCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "screens",
		Short:   "List monitors",
		GroupID: gAdvanced,
		Long: `List the monitors Windows reports and how LAD classifies them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput {
				mons, err := apiClient.GetMonitors()
				if err != nil {
					return err
				}
				return printJSON(cmd, mons)
			}

			text, err := apiClient.GetScreens()
			if err != nil {
				return err
			}
			cmd.Print(text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func NewFansCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "fans",
		Short:   "Show fan speeds",
		GroupID: gAdvanced,
		Long: `Show fan speeds reported by the firmware. Most laptops do not report them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fans, err := apiClient.GetFans()
			if err != nil {
				return err
			}
			if len(fans) == 0 {
				cmd.Println("No fan speeds reported.")
				return nil
			}

			names := make([]string, 0, len(fans))
			for name := range fans {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cmd.Printf("%s: %s\n", name, bold("%d RPM", fans[name]))
			}
			return nil
		},
	}
}

func NewBatteryCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "battery",
		Short:   "Show battery status",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetBattery()
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					cmd.Println("No battery found.")
					return nil
				}
				return err
			}
			if jsonOutput {
				return printJSON(cmd, st)
			}

			if st.Percent != nil {
				cmd.Printf("Charge: %s\n", bold("%.0f%%", *st.Percent))
			}
			cmd.Printf("State: %s\n", bold("%s", st.State))
			if st.RemainingSeconds != nil {
				cmd.Printf("Remaining: %s\n", bold("%s", time.Duration(*st.RemainingSeconds)*time.Second))
			}
			if st.ChargeRateMW != 0 {
				cmd.Printf("Rate: %s\n", bold("%+.1f W", st.ChargeRateMW/1e3))
			}
			if st.DesignMWh > 0 && st.FullMWh > 0 {
				cmd.Printf("Health: %s (%.1f of %.1f Wh)\n", bold("%.0f%%", st.FullMWh/st.DesignMWh*100), st.FullMWh/1e3, st.DesignMWh/1e3)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func NewLogsCommand() *cobra.Command {
	lines := 50

	cmd := &cobra.Command{
		Use:     "logs",
		Short:   "Show recent daemon logs",
		GroupID: gAdvanced,
		Long: `Show recent daemon logs. The daemon keeps the last 500 lines in memory. Pass --lines 0 for all of them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, err := apiClient.GetLogs(lines)
			if err != nil {
				return err
			}
			for _, l := range logs {
				cmd.Println(l)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", lines, "number of lines to show")

	return cmd
}

func NewBaselineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baseline",
		Short:   "Show the power settings LAD restores",
		GroupID: gAdvanced,
		Long: `Show the power settings LAD restores when the laptop is undocked.

LAD records the hibernate timeout and power plan that were active before it changed them the first time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := apiClient.GetBaseline()
			if err != nil {
				return err
			}

			if b.HibernateTimeout != nil {
				timeout := "never"
				if *b.HibernateTimeout > 0 {
					timeout = (time.Duration(*b.HibernateTimeout) * time.Second).String()
				}
				cmd.Printf("Hibernate after: %s\n", bold("%s", timeout))
			} else {
				cmd.Printf("Hibernate after: %s\n", bold("not captured"))
			}
			if b.PowerScheme != nil {
				cmd.Printf("Power plan: %s (%s)\n", bold("%s", b.PowerSchemeName), *b.PowerScheme)
			} else {
				cmd.Printf("Power plan: %s\n", bold("not captured"))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the recorded power settings",
		Long: `Forget the recorded power settings.

Restores are skipped until LAD records new values. Run this only if the recorded values are wrong, with the laptop undocked and your preferred settings active.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.ResetBaseline()
			if err != nil {
				return err
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	})

	return cmd
}

func NewShutdownCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "shutdown",
		Short:   "Stop the daemon",
		GroupID: gAdvanced,
		Long: `Stop the daemon. Every setting LAD changed is restored first.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Shutdown()
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %v", err)
			}
			logrus.Infof("daemon responded: %s", ret)
			return nil
		},
	}
}
