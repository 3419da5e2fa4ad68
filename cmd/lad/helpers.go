package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/types"
	"github.com/ladapp/lad/pkg/version"
)

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	return version.Version, daemonVersion, err
}

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func newEnableDisableCommand(
	use, short, long string,
	enableFunc func() (string, error),
	disableFunc func() (string, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		GroupID: gBasic,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Enable " + use,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := enableFunc()
				if err != nil {
					return fmt.Errorf("failed to enable %s: %v", use, err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Infof("successfully enabled %s", use)
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable " + use,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := disableFunc()
				if err != nil {
					return fmt.Errorf("failed to disable %s: %v", use, err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Infof("successfully disabled %s", use)
				return nil
			},
		},
	)

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport prints one line per bundle step.
func printReport(cmd *cobra.Command, r *types.BundleReport) {
	if r == nil {
		return
	}
	forced := ""
	if r.Forced {
		forced = " (forced)"
	}
	cmd.Printf("%s%s, took %s\n", bold("%s bundle", r.Direction), forced, r.Took.Round(time.Millisecond))
	for _, s := range r.Steps {
		cmd.Printf("  %s %-22s %s\n", outcomeMark(s.Outcome), s.Step, stepDetail(s))
	}
	if n := r.Failed(); n > 0 {
		cmd.Println(color.YellowString("  %d step(s) failed, the rest were applied", n))
	}
}

func stepDetail(s types.StepResult) string {
	switch s.Outcome {
	case types.OutcomeFailed:
		msg := s.Error
		if s.Hint != "" {
			msg += " (" + s.Hint + ")"
		}
		return color.RedString(msg)
	case types.OutcomeSkipped:
		return color.New(color.Faint).Sprint(s.Detail)
	default:
		return s.Detail
	}
}

func outcomeMark(o types.Outcome) string {
	switch o {
	case types.OutcomeOK:
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	case types.OutcomeFailed:
		return color.New(color.Bold, color.FgRed).Sprint("✘")
	default:
		return color.New(color.Faint).Sprint("-")
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
