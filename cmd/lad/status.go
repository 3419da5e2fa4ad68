package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/types"
)

type statusData struct {
	status *types.StatusResponse
	config *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status: st,
		config: conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of LAD",
		Long:    `Get LAD status, the last settings bundle, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, data.status)
			}

			st := data.status
			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Docking status:"))
			if st.Ready {
				cmd.Println("  LAD ready: " + bool2Text(true))
				cmd.Println("    Closing the lid will not sleep the laptop. Video goes to the external monitors only.")
			} else {
				cmd.Println("  LAD ready: " + bool2Text(false))
				cmd.Print("    Laptop settings are active")
				var missing []string
				if !st.OnAC {
					missing = append(missing, "plug in the charger")
				}
				if st.ExternalCount == 0 {
					missing = append(missing, "connect an external monitor")
				}
				if len(missing) > 0 {
					cmd.Printf(". To dock, %s.", strings.Join(missing, " and "))
				} else {
					cmd.Print(".")
				}
				cmd.Println()
			}
			cmd.Printf("  On AC power: %s\n", bool2Text(st.OnAC))
			cmd.Printf("  External monitors: %s (%d active in total)\n", bold("%d", st.ExternalCount), st.ActiveMonitors)
			cmd.Printf("  Last state change: %s\n", relativeTime(st.LastTransition))
			cmd.Printf("  Last wake from sleep: %s\n", relativeTime(st.LastResume))
			if st.ResumePending {
				cmd.Println(color.YellowString("  Re-applying settings after wake..."))
			}
			if st.RecentPolls == 0 {
				cmd.Println(color.YellowString("  The poll loop has not run in the last minute."))
			}

			cmd.Println()

			cmd.Println(bold("Last settings bundle:"))
			if st.LastBundle == nil {
				cmd.Println("  none yet")
			} else {
				printReport(cmd, st.LastBundle)
			}
			if len(st.WakeDevices) > 0 {
				cmd.Printf("  Wake devices: %s\n", strings.Join(st.WakeDevices, ", "))
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Battery health guard: %s\n", bool2Text(conf.BatteryHealthGuardEnabled()))
			cmd.Printf("  Poll interval: %s\n", bold("%s", conf.PollInterval()))
			cmd.Printf("  Delay before re-applying after wake: %s\n", bold("%s", conf.ResumeDelay()))
			cmd.Printf("  Fall back to live values when no baseline is recorded: %s\n", bool2Text(conf.LiveBaselineFallback()))
			cmd.Printf("  Allow other users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			cmd.Printf("  Daemon version: %s\n", bold("%s", st.Version))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
