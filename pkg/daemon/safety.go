package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/display"
	"github.com/ladapp/lad/pkg/powerscheme"
)

const crashLogName = "crash_log.txt"

var (
	// live is the orchestrator the crash handler reverts through.
	live atomic.Pointer[Orchestrator]
	// crashLogPath is where crash reports are appended.
	crashLogPath atomic.Pointer[string]

	// Replaced in tests.
	failsafeBackends = nativeFailsafeBackends
	exit             = os.Exit
)

type lidSetter interface {
	SetLidCloseAction(action powerscheme.LidAction) error
}

func nativeFailsafeBackends() (lidSetter, DisplayControl) {
	log := logrus.StandardLogger()
	// The persisted scheme baseline lets the lid action reach the scheme
	// the revert switches back to.
	var store powerscheme.BaselineStore
	if conf != nil {
		store = configBaselineStore{conf: conf, log: log}
	}
	return powerscheme.New(store, powerscheme.Options{}, log), display.New(log)
}

func setLive(o *Orchestrator) { live.Store(o) }

func clearLive() { live.Store(nil) }

func setCrashLogDir(dir string) {
	p := filepath.Join(dir, crashLogName)
	crashLogPath.Store(&p)
}

// Failsafe puts the lid action back to sleep and restores the extended
// topology using freshly constructed controllers. It never fails and never
// panics.
func Failsafe() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("SAFETY: failsafe panicked: %v", r)
		}
	}()

	power, disp := failsafeBackends()
	if err := power.SetLidCloseAction(powerscheme.LidSleep); err != nil {
		logrus.Errorf("SAFETY: failsafe could not restore lid close action: %v", err)
	}
	if err := disp.RestoreExtended(); err != nil {
		logrus.Errorf("SAFETY: failsafe could not restore extended mode: %v", err)
	}
}

// HandleCrash runs the failsafe, then the full revert through the live
// orchestrator, and appends a report to the crash log.
func HandleCrash(crashType string, cause any) {
	start := time.Now()
	var notes []string

	Failsafe()

	if o := live.Load(); o != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					notes = append(notes, fmt.Sprintf("emergency revert failed: %v", r))
				}
			}()
			report := o.RevertAll()
			if n := report.Failed(); n > 0 {
				notes = append(notes, fmt.Sprintf("emergency revert finished with %d failed step(s)", n))
			}
		}()
	} else {
		notes = append(notes, "no live orchestrator, only the failsafe ran")
	}

	if err := writeCrashLog(crashType, cause, notes, debug.Stack()); err != nil {
		logrus.Errorf("SAFETY: failed to write crash log: %v", err)
	}
	logrus.WithField("took", time.Since(start)).Errorf("SAFETY: %s: %v. System defaults have been restored.", crashType, cause)
}

// RecoverCrash is deferred at the top of long-running goroutines. On panic
// it runs HandleCrash and exits with status 1.
func RecoverCrash(crashType string) {
	r := recover()
	if r == nil {
		return
	}
	HandleCrash(crashType, r)
	exit(1)
}

func writeCrashLog(crashType string, cause any, notes []string, stack []byte) error {
	path := crashLogName
	if p := crashLogPath.Load(); p != nil {
		path = *p
	}

	sep := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n[%s] CRASH DETECTED\n%s\n", sep, time.Now().Format("2006-01-02 15:04:05.000"), sep)
	fmt.Fprintf(&b, "Crash Type: %s\n", crashType)
	for _, n := range notes {
		fmt.Fprintf(&b, "Additional Info: %s\n", n)
	}
	fmt.Fprintf(&b, "\nCause Type: %T\nCause: %v\n\nStack Trace:\n%s\n%s\n\n", cause, cause, stack, sep)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
