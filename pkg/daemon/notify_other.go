//go:build !windows

package daemon

import (
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/syserr"
)

var notifyStop = make(chan struct{})

func keepAwake() error {
	return syserr.New(syserr.ErrUnsupported, "SetThreadExecutionState", nil)
}

// listenNotifications has no notification source here. Resumes are detected
// by the poll loop.
func listenNotifications(notifyHandlers) error {
	logrus.Debug("OS notifications are not supported on this platform")
	<-notifyStop
	return nil
}

func stopListeningNotifications() {
	select {
	case <-notifyStop:
	default:
		close(notifyStop)
	}
}
