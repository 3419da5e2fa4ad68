package daemon

import (
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/syserr"
)

const (
	heartbeatSpec   = "@every 30s"
	batterySpec     = "@every 45s"
	performanceSpec = "@every 5m"

	cpuWarnPercent = 1.0
	rssWarnBytes   = 50 * 1024 * 1024
)

type batteryReader interface {
	BatteryStatus() (probe.BatteryStatus, error)
}

// jobs runs the periodic background work of the daemon.
type jobs struct {
	cron      *cron.Cron
	batteries batteryReader
	metrics   *Metrics
	keepAwake func() error
	log       logrus.FieldLogger

	proc       *process.Process
	lastStatus probe.BatteryStatus
}

func newJobs(batteries batteryReader, metrics *Metrics, log logrus.FieldLogger) (*jobs, error) {
	j := &jobs{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
		batteries: batteries,
		metrics:   metrics,
		keepAwake: keepAwake,
		log:       log,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warnf("PERFORMANCE: process stats unavailable: %v", err)
	}
	j.proc = proc

	for spec, fn := range map[string]func(){
		heartbeatSpec:   j.heartbeat,
		batterySpec:     j.battery,
		performanceSpec: j.performance,
	} {
		if _, err := j.cron.AddFunc(spec, fn); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *jobs) start() {
	j.cron.Start()
	j.battery()
	j.performance()
}

// stop waits for running jobs to finish.
func (j *jobs) stop() {
	<-j.cron.Stop().Done()
}

// heartbeat asks the OS to keep the system out of idle sleep.
func (j *jobs) heartbeat() {
	err := j.keepAwake()
	switch {
	case err == nil:
		j.log.WithField("job", "heartbeat").Trace("HEARTBEAT: power request sent")
	case errors.Is(err, syserr.ErrUnsupported):
		j.log.WithField("job", "heartbeat").Trace("HEARTBEAT: not supported on this platform")
	default:
		j.log.Warnf("HEARTBEAT: failed to send power request: %v", err)
	}
}

func (j *jobs) battery() {
	st, err := j.batteries.BatteryStatus()
	if err != nil {
		if errors.Is(err, syserr.ErrNotApplicable) {
			j.log.WithField("job", "battery").Trace("BATTERY: no battery present")
			return
		}
		j.log.Debugf("BATTERY: failed to read battery status: %v", err)
		return
	}

	fields := logrus.Fields{"state": st.State, "present": st.Present}
	if st.Percent != nil {
		fields["percent"] = *st.Percent
	}
	if st.RemainingSeconds != nil {
		fields["remaining"] = (time.Duration(*st.RemainingSeconds) * time.Second).String()
	}
	if st.State != j.lastStatus.State {
		j.log.WithFields(fields).Infof("BATTERY: battery state is %s", st.State)
	} else {
		j.log.WithFields(fields).Trace("BATTERY: battery status")
	}
	j.lastStatus = st
}

func (j *jobs) performance() {
	if j.proc == nil {
		return
	}
	cpu, err := j.proc.Percent(0)
	if err != nil {
		j.log.Debugf("PERFORMANCE: failed to read CPU usage: %v", err)
		return
	}
	mem, err := j.proc.MemoryInfo()
	if err != nil {
		j.log.Debugf("PERFORMANCE: failed to read memory usage: %v", err)
		return
	}
	j.metrics.setProcess(cpu, mem.RSS)

	entry := j.log.WithFields(logrus.Fields{
		"cpuPercent": cpu,
		"rssMB":      mem.RSS / 1024 / 1024,
	})
	if cpu >= cpuWarnPercent || mem.RSS >= rssWarnBytes {
		entry.Warnf("PERFORMANCE: CPU %.2f%%, memory %dMB", cpu, mem.RSS/1024/1024)
		return
	}
	entry.Infof("PERFORMANCE: CPU %.2f%%, memory %dMB", cpu, mem.RSS/1024/1024)
}
