// Package daemon registers the LAD daemon to start when the user logs in.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	runKeyPath   = `Software\Microsoft\Windows\CurrentVersion\Run`
	runValueName = "LAD"
)

// executablePath returns the absolute path of the running binary.
func executablePath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return "", fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}
	return exePath, nil
}

// commandLine builds the autostart command line, quoting every argument
// that contains a space.
func commandLine(exePath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{exePath}, args...) {
		if strings.ContainsAny(a, " \t") && !strings.HasPrefix(a, `"`) {
			a = `"` + a + `"`
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
