package daemon

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/syserr"
	"github.com/ladapp/lad/pkg/utils/ptr"
)

type fakeBatteries struct {
	st    probe.BatteryStatus
	err   error
	reads int
}

func (f *fakeBatteries) BatteryStatus() (probe.BatteryStatus, error) {
	f.reads++
	return f.st, f.err
}

func TestNewJobsSchedulesAll(t *testing.T) {
	j, err := newJobs(&fakeBatteries{}, nil, quietLogger())
	require.NoError(t, err)

	assert.Len(t, j.cron.Entries(), 3)
}

func TestJobsHeartbeat(t *testing.T) {
	j, err := newJobs(&fakeBatteries{}, nil, quietLogger())
	require.NoError(t, err)

	calls := 0
	for _, ret := range []error{nil, syserr.New(syserr.ErrUnsupported, "SetThreadExecutionState", nil), errors.New("failed")} {
		j.keepAwake = func() error {
			calls++
			return ret
		}
		j.heartbeat()
	}
	assert.Equal(t, 3, calls)
}

func TestJobsBatteryTracksState(t *testing.T) {
	b := &fakeBatteries{st: probe.BatteryStatus{Present: true, Percent: ptr.To(80.0), State: "charging", RemainingSeconds: ptr.To(1800)}}
	j, err := newJobs(b, nil, quietLogger())
	require.NoError(t, err)

	j.battery()
	assert.Equal(t, "charging", j.lastStatus.State)

	b.st.State = "discharging"
	j.battery()
	assert.Equal(t, "discharging", j.lastStatus.State)

	// A failed read keeps the last known status.
	b.err = syserr.New(syserr.ErrNotApplicable, "battery", nil)
	j.battery()
	assert.Equal(t, "discharging", j.lastStatus.State)
	assert.Equal(t, 3, b.reads)
}

func TestJobsPerformanceRecordsMetrics(t *testing.T) {
	m := NewMetrics()
	j, err := newJobs(&fakeBatteries{}, m, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, j.proc)

	j.performance()

	assert.Greater(t, testutil.ToFloat64(m.processRSS), 0.0)
}

func TestJobsStartStop(t *testing.T) {
	b := &fakeBatteries{err: syserr.New(syserr.ErrNotApplicable, "battery", nil)}
	j, err := newJobs(b, nil, quietLogger())
	require.NoError(t, err)

	j.start()
	j.stop()

	assert.Equal(t, 1, b.reads)
}
