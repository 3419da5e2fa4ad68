//go:build windows

package daemon

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/registry"
)

// Install registers the daemon under the current user's Run key, so it
// starts with the user session. The daemon needs the interactive session to
// receive display and power notifications.
func Install(args []string) error {
	exePath, err := executablePath()
	if err != nil {
		return err
	}
	logrus.Infof("current executable path: %s", exePath)

	k, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", runKeyPath, err)
	}
	defer k.Close()

	cmdline := commandLine(exePath, args)
	if err := k.SetStringValue(runValueName, cmdline); err != nil {
		return fmt.Errorf("failed to write autostart entry: %w", err)
	}
	logrus.Infof("autostart entry written: %s", cmdline)
	return nil
}

// Uninstall removes the autostart entry. A missing entry is not an error.
func Uninstall() error {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", runKeyPath, err)
	}
	defer k.Close()

	logrus.Infof("removing autostart entry")
	if err := k.DeleteValue(runValueName); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to remove autostart entry: %w", err)
	}
	return nil
}

// Installed returns the registered command line, if any.
func Installed() (string, bool) {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()

	v, _, err := k.GetStringValue(runValueName)
	if err != nil {
		return "", false
	}
	return v, true
}
