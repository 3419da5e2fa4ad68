package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ladapp/lad/pkg/client"
	"github.com/ladapp/lad/pkg/gui"
	"github.com/ladapp/lad/pkg/utils/osver"
)

var (
	logLevel       = "info"
	unixSocketPath = defaultPath("lad.sock")
	configPath     = defaultPath("config.json")
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gInstallation,
	}
)

var apiClient = client.NewClient(unixSocketPath)

// defaultPath returns name inside the per-user LAD data directory,
// %LOCALAPPDATA%\LADApp on Windows.
func defaultPath(name string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "LADApp", name)
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: LAD daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'lad daemon', or register it to start at login with 'lad install'.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Run the command as the user that started the daemon")
		fmt.Fprintln(os.Stderr, "  - Or restart the daemon with '--always-allow-non-root-access'")
	}
}

func main() {
	if !osver.IsAtLeast(10, 0, 0) {
		fmt.Fprintln(os.Stderr, "lad requires Windows 10 or later")
		os.Exit(1)
	}

	// LAD only polls and reacts to notifications.
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(2)
	}

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lad",
		Short: "lad turns a docked Windows laptop into a desktop",
		Long: `lad turns a docked Windows laptop into a desktop.

When the laptop is on AC power with at least one external monitor, LAD keeps
it awake with the lid closed, switches to the High Performance power plan,
moves the desktop to the external monitors and lets USB keyboards and mice
wake the machine. Everything is restored when either condition goes away.

Press Ctrl+Alt+Shift+D at any time to restore the extended display layout.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading so both are the same version.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("LAD daemon is too old to report its version. Restart the daemon after upgrading.")
			}

			return nil
		},
	}

	if os.Getenv("LAD_RUN_GUI") != "" || strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe") == "lad-gui" {
		cmd.Run = func(_ *cobra.Command, _ []string) {
			gui.Run(unixSocketPath)
		}
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "LAD daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewReadyCommand(),
		NewReapplyCommand(),
		NewEjectCommand(),
		NewSafetyRevertCommand(),
		NewBatteryGuardCommand(),
		NewDevicesCommand(),
		NewScreensCommand(),
		NewFansCommand(),
		NewBatteryCommand(),
		NewLogsCommand(),
		NewBaselineCommand(),
		NewShutdownCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
		gui.NewGUICommand(&unixSocketPath, gBasic),
	)

	return cmd
}
