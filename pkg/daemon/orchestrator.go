package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/events"
	"github.com/ladapp/lad/pkg/powerscheme"
	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/types"
)

// Environment samples the two readiness inputs.
type Environment interface {
	Read() probe.Sample
}

// PowerControl changes the active power scheme.
type PowerControl interface {
	SetLidCloseAction(action powerscheme.LidAction) error
	SetHibernateNever() error
	RestoreHibernate() error
	SwitchToHighPerformance() error
	RestoreScheme() error
}

// DisplayControl changes the display topology.
type DisplayControl interface {
	ForceExternalOnly() error
	RestoreExtended() error
}

// PeripheralControl changes wake and suspend behavior of input devices.
type PeripheralControl interface {
	EnableWakeForAllPointingAndKeyboardDevices() ([]string, error)
	DisableUSBSelectiveSuspend() error
	EnableUSBSelectiveSuspend() error
}

// ChargeControl sets the firmware battery charge threshold.
type ChargeControl interface {
	IsSupported() bool
	Apply() error
	Revert() error
}

// GuardSetting reports whether the battery guard step is part of the bundle.
type GuardSetting interface {
	BatteryHealthGuardEnabled() bool
}

// Dependencies are the collaborators of an Orchestrator. All of them are
// required except Hub and Metrics.
type Dependencies struct {
	Env        Environment
	Power      PowerControl
	Display    DisplayControl
	Peripheral PeripheralControl
	Charge     ChargeControl
	Guard      GuardSetting
	Hub        *events.EventHub
	Metrics    *Metrics
	Log        logrus.FieldLogger
}

type Options struct {
	// ResumeDelay is how long to wait after a resume before re-applying.
	ResumeDelay time.Duration
}

const defaultResumeDelay = 2 * time.Second

// Orchestrator owns the readiness state and applies or reverts the settings
// bundle on every transition. All state changes happen under mu.
type Orchestrator struct {
	env     Environment
	power   PowerControl
	display DisplayControl
	periph  PeripheralControl
	charge  ChargeControl
	guard   GuardSetting
	hub     *events.EventHub
	metrics *Metrics
	log     logrus.FieldLogger
	runner  bundleRunner

	resumeDelay time.Duration

	mu             sync.Mutex
	ready          bool
	last           probe.Sample
	lastTransition time.Time
	lastBundle     *types.BundleReport
	wakeDevices    []string
	resumeTimer    *time.Timer
	resumeGen      uint64
	lastResume     time.Time
	closed         bool

	sub  chan events.Event
	done chan struct{}
}

// NewOrchestrator returns an Orchestrator in the not-ready state. When the
// dependencies carry a hub, it subscribes to the probe change events only.
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.ResumeDelay <= 0 {
		opts.ResumeDelay = defaultResumeDelay
	}

	o := &Orchestrator{
		env:         deps.Env,
		power:       deps.Power,
		display:     deps.Display,
		periph:      deps.Peripheral,
		charge:      deps.Charge,
		guard:       deps.Guard,
		hub:         deps.Hub,
		metrics:     deps.Metrics,
		log:         log,
		runner:      bundleRunner{log: log, metrics: deps.Metrics},
		resumeDelay: opts.ResumeDelay,
		done:        make(chan struct{}),
	}

	if o.hub != nil {
		o.sub = o.hub.SubscribeTo(events.PowerLineChanged, events.MonitorCountChanged)
		go o.watch()
	} else {
		close(o.done)
	}
	return o
}

func (o *Orchestrator) watch() {
	defer close(o.done)
	defer RecoverCrash("Orchestrator")
	for ev := range o.sub {
		o.handleEvent(ev)
	}
}

func (o *Orchestrator) handleEvent(ev events.Event) {
	switch ev.Name {
	case events.MonitorCountChanged:
		p, err := events.DecodeAs[events.MonitorCountEvent](ev)
		if err != nil {
			o.log.Warnf("POLICY: bad monitor event: %v", err)
			return
		}
		if p.New < p.Old {
			o.onMonitorDecrease(p.New)
		}
		o.Evaluate()
	case events.PowerLineChanged:
		o.Evaluate()
	}
}

// onMonitorDecrease puts the internal panel back before the regular
// transition runs, so a user who unplugs the last monitor is never left
// without a screen.
func (o *Orchestrator) onMonitorDecrease(remaining int) {
	s := o.env.Read()
	if s.OnAC && remaining > 0 {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	start := time.Now()
	err := o.display.RestoreExtended()
	entry := o.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("DISPLAY: failed to restore extended mode after monitor disconnect: %v", err)
		return
	}
	entry.Info("DISPLAY: monitor disconnected, restored extended mode")
}

// Evaluate samples the environment and runs the bundle for the new state if
// readiness changed. It returns the report of the bundle that ran, or nil.
func (o *Orchestrator) Evaluate() *types.BundleReport {
	s := o.env.Read()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	return o.evaluateLocked(s, false)
}

// Observe evaluates a sample the caller already took. The poll loop calls it
// on every tick, so a transition never depends on a change event arriving.
func (o *Orchestrator) Observe(s probe.Sample) *types.BundleReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	return o.evaluateLocked(s, false)
}

// Reapply forces the bundle for the current state to run again.
func (o *Orchestrator) Reapply() *types.BundleReport {
	s := o.env.Read()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.ready = !s.Ready()
	o.log.Infof("POLICY: forced re-apply, AC: %t, monitors: %d", s.OnAC, s.ExternalCount)
	return o.evaluateLocked(s, true)
}

func (o *Orchestrator) evaluateLocked(s probe.Sample, forced bool) *types.BundleReport {
	o.last = s
	ready := s.Ready()
	o.metrics.setEnvironment(ready, s.OnAC, s.ExternalCount)

	if ready == o.ready {
		o.log.WithFields(logrus.Fields{
			"onAC":     s.OnAC,
			"monitors": s.ExternalCount,
			"ready":    ready,
		}).Trace("POLICY: readiness unchanged")
		return nil
	}

	o.ready = ready
	o.lastTransition = time.Now()
	o.metrics.observeTransition(ready, forced)
	o.hub.Publish(events.ReadinessChanged, events.ReadinessEvent{
		Ready:    ready,
		OnAC:     s.OnAC,
		Monitors: s.ExternalCount,
		Forced:   forced,
		Ts:       o.lastTransition.Unix(),
	})

	var report *types.BundleReport
	if ready {
		o.log.Info("POLICY: system state: LAD ready, safe to close lid")
		report = o.runner.run(types.DirectionEnable, forced, o.enableSteps())
	} else {
		o.log.Info("POLICY: system state: LAD not ready, AC power and an external monitor are required")
		report = o.runner.run(types.DirectionRevert, forced, o.revertSteps())
	}
	o.finishBundle(report)
	return report
}

func (o *Orchestrator) finishBundle(report *types.BundleReport) {
	o.lastBundle = report
	o.log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
		"took":      report.Took,
	}).Infof("POLICY: %s bundle completed in %dms", report.Direction, report.Took.Milliseconds())
	o.hub.Publish(events.BundleApplied, events.BundleEvent{
		Direction: string(report.Direction),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		TookMs:    report.Took.Milliseconds(),
	})
}

// guardStep checks the setting and firmware support when the step runs, so
// a failing support probe is recorded like any other step failure.
func (o *Orchestrator) guardStep(name string, fn func() error) step {
	return step{
		name: name,
		run:  func() (string, error) { return "", fn() },
		skipIf: func() string {
			switch {
			case !o.guard.BatteryHealthGuardEnabled():
				return "battery health guard disabled"
			case !o.charge.IsSupported():
				return "manual configuration required"
			}
			return ""
		},
	}
}

func (o *Orchestrator) enableSteps() []step {
	return []step{
		{name: types.StepLidClose, run: func() (string, error) {
			return powerscheme.LidDoNothing.String(), o.power.SetLidCloseAction(powerscheme.LidDoNothing)
		}},
		{name: types.StepHibernate, run: func() (string, error) {
			return "never", o.power.SetHibernateNever()
		}},
		{name: types.StepPowerScheme, run: func() (string, error) {
			return "", o.power.SwitchToHighPerformance()
		}},
		o.guardStep(types.StepBatteryGuard, o.charge.Apply),
		{name: types.StepPeripheral, run: func() (string, error) {
			names, err := o.periph.EnableWakeForAllPointingAndKeyboardDevices()
			o.wakeDevices = names
			if err != nil {
				return "", err
			}
			if len(names) == 0 {
				o.log.Warn("PERIPHERAL: no devices were wake-enabled (may require Administrator or devices may not support wake)")
			}
			return fmt.Sprintf("%d device(s)", len(names)), nil
		}},
		{name: types.StepUSBSuspend, run: func() (string, error) {
			return "disabled", o.periph.DisableUSBSelectiveSuspend()
		}},
		{name: types.StepDisplay, run: func() (string, error) {
			return "external", o.display.ForceExternalOnly()
		}},
	}
}

// revertSteps undoes the enable bundle. Device wake flags are left as they
// are since they have no effect while the lid is open.
func (o *Orchestrator) revertSteps() []step {
	return []step{
		{name: types.StepLidClose, run: func() (string, error) {
			return powerscheme.LidSleep.String(), o.power.SetLidCloseAction(powerscheme.LidSleep)
		}},
		{name: types.StepHibernate, run: func() (string, error) {
			return "", o.power.RestoreHibernate()
		}},
		{name: types.StepPowerScheme, run: func() (string, error) {
			return "", o.power.RestoreScheme()
		}},
		o.guardStep(types.StepBatteryGuard, o.charge.Revert),
		{name: types.StepUSBSuspend, run: func() (string, error) {
			return "enabled", o.periph.EnableUSBSelectiveSuspend()
		}},
		{name: types.StepDisplay, run: func() (string, error) {
			return "extended", o.display.RestoreExtended()
		}},
	}
}

// ejectSteps restores everything a user needs before unplugging, without
// touching readiness or the battery threshold.
func (o *Orchestrator) ejectSteps() []step {
	return []step{
		{name: types.StepLidClose, run: func() (string, error) {
			return powerscheme.LidSleep.String(), o.power.SetLidCloseAction(powerscheme.LidSleep)
		}},
		{name: types.StepHibernate, run: func() (string, error) {
			return "", o.power.RestoreHibernate()
		}},
		{name: types.StepPowerScheme, run: func() (string, error) {
			return "", o.power.RestoreScheme()
		}},
		{name: types.StepDisplay, run: func() (string, error) {
			return "extended", o.display.RestoreExtended()
		}},
		{name: types.StepUSBSuspend, run: func() (string, error) {
			return "enabled", o.periph.EnableUSBSelectiveSuspend()
		}},
	}
}

// QuickEject reverts the settings for safe unplugging. Readiness is left
// as is; the next transition decides what happens after that.
func (o *Orchestrator) QuickEject() *types.BundleReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log.Info("POLICY: quick eject requested")
	report := o.runner.run(types.DirectionEject, true, o.ejectSteps())
	o.finishBundle(report)
	return report
}

// RevertAll unconditionally runs the revert bundle and marks the machine not
// ready. It is the exit path.
func (o *Orchestrator) RevertAll() *types.BundleReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopResumeLocked()
	o.ready = false
	o.log.Info("POLICY: reverting all settings")
	report := o.runner.run(types.DirectionRevert, true, o.revertSteps())
	o.finishBundle(report)
	return report
}

// SafetyRevert restores the extended topology right away. It does not wait
// for a bundle in progress.
func (o *Orchestrator) SafetyRevert() error {
	o.metrics.observeSafetyRevert()

	o.mu.Lock()
	lastResume := o.lastResume
	o.mu.Unlock()

	entry := o.log.WithField("category", "SAFETY")
	if !lastResume.IsZero() {
		entry = entry.WithField("sinceWake", time.Since(lastResume).Round(time.Second))
	}
	entry.Info("SAFETY: revert hotkey pressed, restoring display topology")

	start := time.Now()
	err := o.display.RestoreExtended()
	o.hub.Publish(events.SafetyRevert, events.MessageEvent{Message: "display topology restored", Ts: time.Now().Unix()})
	if err != nil {
		entry.WithField("took", time.Since(start)).Errorf("SAFETY: failed to restore extended mode: %v", err)
		return err
	}
	entry.WithField("took", time.Since(start)).Info("SAFETY: extended mode restored")
	return nil
}

// OnSuspend cancels a pending resume re-apply.
func (o *Orchestrator) OnSuspend() {
	o.mu.Lock()
	o.stopResumeLocked()
	o.mu.Unlock()

	o.log.Info("SLEEP: system is suspending")
	o.hub.Publish(events.SystemSuspend, events.MessageEvent{Message: "system is suspending", Ts: time.Now().Unix()})
}

// OnResume schedules a forced re-apply after the resume delay. Repeated
// calls before the delay elapses collapse into one re-apply.
func (o *Orchestrator) OnResume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.lastResume = time.Now()
	o.stopResumeLocked()
	o.resumeGen++
	gen := o.resumeGen
	o.resumeTimer = time.AfterFunc(o.resumeDelay, func() {
		defer RecoverCrash("Resume")
		o.resume(gen)
	})

	o.log.Infof("RESUME: system resumed, re-applying settings in %s", o.resumeDelay)
	o.hub.Publish(events.SystemResume, events.MessageEvent{Message: "system resumed", Ts: o.lastResume.Unix()})
}

func (o *Orchestrator) stopResumeLocked() {
	if o.resumeTimer != nil {
		o.resumeTimer.Stop()
		o.resumeTimer = nil
	}
	// A timer that already fired sees a stale generation and does nothing.
	o.resumeGen++
}

func (o *Orchestrator) resume(gen uint64) *types.BundleReport {
	s := o.env.Read()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || gen != o.resumeGen {
		return nil
	}
	o.resumeTimer = nil
	o.metrics.observeResume()

	ready := s.Ready()
	o.log.WithFields(logrus.Fields{
		"onAC":     s.OnAC,
		"monitors": s.ExternalCount,
		"ready":    ready,
	}).Infof("RESUME: readiness check, AC: %t, monitors: %d, LAD ready: %t", s.OnAC, s.ExternalCount, ready)

	// Sleep can reset any of the settings, so run the bundle regardless.
	o.ready = !ready
	report := o.evaluateLocked(s, true)
	o.log.WithField("took", time.Since(o.lastResume)).Infof("RESUME: re-apply finished %s after wake", time.Since(o.lastResume).Round(time.Millisecond))
	return report
}

// SetBatteryGuard applies or reverts the charge threshold right away when
// the machine is ready. The caller persists the setting.
func (o *Orchestrator) SetBatteryGuard(enabled bool) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.hub.Publish(events.BatteryGuardChanged, events.MessageEvent{
		Message: fmt.Sprintf("battery health guard enabled: %t", enabled),
		Ts:      time.Now().Unix(),
	})

	if !o.charge.IsSupported() {
		if enabled {
			o.log.Info("BATTERY: battery health guard enabled, manual configuration required")
			return "manual configuration required", nil
		}
		o.log.Info("BATTERY: battery health guard disabled, restore the limit in the manufacturer app")
		return "manual restoration required", nil
	}

	start := time.Now()
	if enabled {
		if !o.ready {
			o.log.Info("BATTERY: battery health guard enabled, limit applies when LAD ready")
			return "enabled, limit applies when LAD ready", nil
		}
		if err := o.charge.Apply(); err != nil {
			o.log.Warnf("BATTERY: failed to enable 80%% charge limit: %v", err)
			return "", err
		}
		o.log.WithField("took", time.Since(start)).Info("BATTERY: 80% charge limit enabled")
		return "80% charge limit enabled", nil
	}

	if err := o.charge.Revert(); err != nil {
		o.log.Warnf("BATTERY: failed to disable charge limit: %v", err)
		return "", err
	}
	o.log.WithField("took", time.Since(start)).Info("BATTERY: charge limit disabled, restored to 100%")
	return "charge limit disabled, restored to 100%", nil
}

// Ready reports the current readiness state.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// LastResume returns when the last resume was reported.
func (o *Orchestrator) LastResume() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResume
}

func (o *Orchestrator) Status() types.Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return types.Status{
		Ready:          o.ready,
		OnAC:           o.last.OnAC,
		ExternalCount:  o.last.ExternalCount,
		ActiveMonitors: o.last.ActiveMonitors,
		LastEvaluated:  o.last.At,
		LastTransition: o.lastTransition,
		LastResume:     o.lastResume,
		ResumePending:  o.resumeTimer != nil,
		GuardEnabled:   o.guard.BatteryHealthGuardEnabled(),
		WakeDevices:    append([]string(nil), o.wakeDevices...),
		LastBundle:     o.lastBundle,
	}
}

// Close cancels a pending resume and stops listening for events. It does not
// revert anything.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopResumeLocked()
	o.mu.Unlock()

	if o.sub != nil {
		o.hub.Unsubscribe(o.sub)
	}
	<-o.done
}
