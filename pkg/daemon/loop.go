package daemon

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/types"
)

// pollGapThreshold is how long the poll loop may stall before the gap is
// treated as a sleep the OS did not report.
const pollGapThreshold = 30 * time.Second

// TimeSeriesRecorder records the last N poll times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	// Interval is the expected time between two records.
	Interval      time.Duration
	LastPollTimes []time.Time
	mu            *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int, interval time.Duration) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		Interval:       interval,
		LastPollTimes:  make([]time.Time, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecordNow adds a new record with the current time.
func (r *TimeSeriesRecorder) AddRecordNow() {
	r.AddRecord(time.Now())
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip the monotonic clock reading so differences include time spent
	// asleep.
	t = t.Round(0)

	if len(r.LastPollTimes) >= r.MaxRecordCount {
		r.LastPollTimes = r.LastPollTimes[1:]
	}
	r.LastPollTimes = append(r.LastPollTimes, t)
}

// SetInterval changes the expected time between two records.
func (r *TimeSeriesRecorder) SetInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Interval = d
}

// ClearRecords clears all records.
func (r *TimeSeriesRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.LastPollTimes = make([]time.Time, 0)
}

// GetRecordsIn returns the number of continuous records in the last duration.
func (r *TimeSeriesRecorder) GetRecordsIn(last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	slack := r.Interval + time.Second

	// The last record must be within the last duration.
	if len(r.LastPollTimes) > 0 && time.Since(r.LastPollTimes[len(r.LastPollTimes)-1]) >= slack {
		return 0
	}

	// Continuous records are at most Interval+1s apart.
	count := 0
	for i := len(r.LastPollTimes) - 1; i >= 0; i-- {
		record := r.LastPollTimes[i]
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.LastPollTimes) {
			theRecordAfter = r.LastPollTimes[i+1]
		}

		if theRecordAfter.Sub(record) >= slack {
			break
		}
		count++
	}

	return count
}

// GetLastRecords returns the records newer than last, newest first.
func (r *TimeSeriesRecorder) GetLastRecords(last time.Duration) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []time.Time
	for i := len(r.LastPollTimes) - 1; i >= 0; i-- {
		record := r.LastPollTimes[i]
		if time.Since(record) > last {
			break
		}
		records = append(records, record)
	}

	return records
}

// GetLastRecord returns the last record.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.LastPollTimes) == 0 {
		return time.Time{}
	}

	return r.LastPollTimes[len(r.LastPollTimes)-1]
}

func formatRelativeTimes(times []time.Time) []string {
	var timesString []string
	for _, t := range times {
		timesString = append(timesString, time.Since(t).Round(time.Second).String())
	}
	return timesString
}

// sampler is the probe surface the poll loop drives.
type sampler interface {
	Poll() probe.Sample
}

// resumer is notified when the poll loop detects an unreported sleep.
type resumer interface {
	OnResume()
	LastResume() time.Time
}

// policy re-evaluates readiness from a sample.
type policy interface {
	Observe(s probe.Sample) *types.BundleReport
}

type poller struct {
	source   sampler
	policy   policy
	resumer  resumer
	recorder *TimeSeriesRecorder
	interval func() time.Duration
	log      logrus.FieldLogger

	lastStatus    pollStatus
	lastPrintTime time.Time
}

type pollStatus struct {
	onAC           bool
	externalCount  int
	activeMonitors int
}

// run polls until ctx is done.
func (p *poller) run(ctx context.Context) {
	for {
		p.pollOnce()

		interval := p.interval()
		p.recorder.SetInterval(interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// pollOnce samples the environment once and hands the sample to the policy.
// The probe also publishes change events, which only make the reaction
// faster.
func (p *poller) pollOnce() probe.Sample {
	if p.checkMissedPolls() {
		p.recorder.ClearRecords()
	}
	p.recorder.AddRecordNow()

	s := p.source.Poll()
	p.printStatus(s)
	if p.policy != nil {
		p.policy.Observe(s)
	}
	return s
}

// checkMissedPolls reports whether the loop stalled long enough to have
// slept through a suspend, and triggers the resume path if the OS did not.
func (p *poller) checkMissedPolls() bool {
	last := p.recorder.GetLastRecord()
	if last.IsZero() {
		return false
	}
	gap := time.Since(last)
	if gap < pollGapThreshold {
		return false
	}

	entry := p.log.WithFields(logrus.Fields{
		"gap":           gap.Round(time.Second).String(),
		"recentRecords": formatRelativeTimes(p.recorder.GetLastRecords(2 * pollGapThreshold)),
	})
	if p.resumer.LastResume().After(last) {
		entry.Debug("RESUME: poll gap covered by a reported resume")
		return true
	}
	entry.Info("RESUME: possibly missed a resume notification, re-applying")
	p.resumer.OnResume()
	return true
}

func (p *poller) printStatus(s probe.Sample) {
	current := pollStatus{
		onAC:           s.OnAC,
		externalCount:  s.ExternalCount,
		activeMonitors: s.ActiveMonitors,
	}
	fields := logrus.Fields{
		"onAC":           s.OnAC,
		"externalCount":  s.ExternalCount,
		"activeMonitors": s.ActiveMonitors,
		"ready":          s.Ready(),
	}

	defer func() {
		p.lastPrintTime = time.Now()
	}()

	// Skip printing if the last print was less than one interval ago and
	// nothing changed.
	if time.Since(p.lastPrintTime) < p.interval()+time.Second && reflect.DeepEqual(p.lastStatus, current) {
		p.log.WithFields(fields).Trace("poll status")
		return
	}

	p.log.WithFields(fields).Debug("poll status")

	p.lastStatus = current
}
