//go:build !windows

package daemon

import "github.com/ladapp/lad/pkg/syserr"

func Install(_ []string) error {
	return syserr.New(syserr.ErrUnsupported, "install", nil)
}

func Uninstall() error {
	return syserr.New(syserr.ErrUnsupported, "uninstall", nil)
}

func Installed() (string, bool) {
	return "", false
}
