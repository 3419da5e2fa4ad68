package main

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ladapp/lad/pkg/config"
	daemonutils "github.com/ladapp/lad/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Start LAD at login",
		GroupID: gInstallation,
		Long: `Start the LAD daemon when you log in.

LAD runs in your user session because it needs to see display changes and the lid. By default only your user can talk to the daemon. Use --allow-non-root-access to let other users on this machine use the lad command too.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("other users are allowed to access the LAD daemon.")
			} else {
				logrus.Info("only the current user is allowed to access the LAD daemon.")
			}

			err = daemonutils.Install([]string{"daemon", "--config", configPath, "--daemon-socket", unixSocketPath})
			if err != nil {
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			logrus.Info("installation succeeded. LAD starts at your next login. Run 'lad daemon' to start it now.")

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow other users to access the LAD daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Stop starting LAD at login",
		GroupID: gInstallation,
		Long: `Stop starting the LAD daemon at login.

A running daemon is asked to shut down first, so every setting it changed is restored.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if ret, err := apiClient.Shutdown(); err == nil {
				logrus.Infof("daemon responded: %s", ret)
			} else {
				logrus.Debugf("daemon not stopped: %v", err)
			}

			if err := daemonutils.Uninstall(); err != nil {
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Info("LAD no longer starts at login. Your config is kept at " + configPath)
			return nil
		},
	}
}
