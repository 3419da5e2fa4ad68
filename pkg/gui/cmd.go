package gui

import (
	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/client"
	"github.com/ladapp/lad/pkg/version"
)

// NewGUICommand reads unixSocketPath when the command runs, after flags are
// parsed.
func NewGUICommand(unixSocketPath *string, groupID string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gui",
		Short:   "Start the LAD tray app",
		GroupID: groupID,
		Long: `Start the LAD tray app.

The tray app talks to a running LAD daemon. Quitting the tray app leaves the daemon running.`,
		Run: func(_ *cobra.Command, _ []string) {
			Run(*unixSocketPath)
		},
	}

	return cmd
}

func Run(unixSocketPath string) {
	logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit).Info("lad gui")

	ctrl := newMenuController(client.NewClient(unixSocketPath))
	systray.Run(ctrl.onReady, ctrl.onExit)
}
