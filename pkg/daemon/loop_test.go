package daemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/probe"
	"github.com/ladapp/lad/pkg/types"
)

func TestPollRecorder_GetRecordsIn(t *testing.T) {
	type fields struct {
		MaxRecordCount int
		Interval       time.Duration
		LastPollTimes  []time.Time
		mu             *sync.Mutex
	}
	type args struct {
		last time.Duration
	}
	tests := []struct {
		name   string
		fields fields
		args   args
		want   int
	}{
		{
			name: "test noncontinuous records",
			fields: fields{
				MaxRecordCount: 10,
				Interval:       2 * time.Second,
				LastPollTimes: []time.Time{
					time.Now().Add(-time.Second * 9).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 4).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 2).Add(-10 * time.Millisecond),
				},
				mu: &sync.Mutex{},
			},
			args: args{
				last: time.Second * 10,
			},
			want: 2,
		},
		{
			name: "test continuous records",
			fields: fields{
				MaxRecordCount: 10,
				Interval:       2 * time.Second,
				LastPollTimes: []time.Time{
					time.Now().Add(-time.Second * 14).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 12).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 8).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 6).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 4).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 2).Add(-10 * time.Millisecond),
				},
				mu: &sync.Mutex{},
			},
			args: args{
				last: time.Second * 10,
			},
			want: 4,
		},
		{
			name: "test stale last record",
			fields: fields{
				MaxRecordCount: 10,
				Interval:       2 * time.Second,
				LastPollTimes: []time.Time{
					time.Now().Add(-time.Second * 10).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 8).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 6).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 4).Add(-10 * time.Millisecond),
				},
				mu: &sync.Mutex{},
			},
			args: args{
				last: time.Second * 20,
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TimeSeriesRecorder{
				MaxRecordCount: tt.fields.MaxRecordCount,
				Interval:       tt.fields.Interval,
				LastPollTimes:  tt.fields.LastPollTimes,
				mu:             tt.fields.mu,
			}
			if got := r.GetRecordsIn(tt.args.last); got != tt.want {
				t.Errorf("GetRecordsIn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPollRecorderDropsOldest(t *testing.T) {
	r := NewTimeSeriesRecorder(3, time.Second)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.AddRecord(base.Add(time.Duration(i) * time.Second))
	}

	assert.Len(t, r.LastPollTimes, 3)
	assert.True(t, r.GetLastRecord().Equal(base.Add(4*time.Second)))

	r.ClearRecords()
	assert.True(t, r.GetLastRecord().IsZero())
}

type fakeSampler struct {
	polls int
}

func (f *fakeSampler) Poll() probe.Sample {
	f.polls++
	return probe.Sample{OnAC: true, ExternalCount: 1, At: time.Now()}
}

type fakeResumer struct {
	resumes    int
	lastResume time.Time
}

func (f *fakeResumer) OnResume()             { f.resumes++ }
func (f *fakeResumer) LastResume() time.Time { return f.lastResume }

type fakePolicy struct {
	samples []probe.Sample
}

func (f *fakePolicy) Observe(s probe.Sample) *types.BundleReport {
	f.samples = append(f.samples, s)
	return nil
}

func newTestPoller() (*poller, *fakeSampler, *fakeResumer) {
	s := &fakeSampler{}
	r := &fakeResumer{}
	return &poller{
		source:   s,
		resumer:  r,
		recorder: NewTimeSeriesRecorder(60, 2*time.Second),
		interval: func() time.Duration { return 2 * time.Second },
		log:      quietLogger(),
	}, s, r
}

func TestPollOnce(t *testing.T) {
	p, s, r := newTestPoller()

	p.pollOnce()
	p.pollOnce()

	assert.Equal(t, 2, s.polls)
	assert.Equal(t, 0, r.resumes)
	assert.Len(t, p.recorder.GetLastRecords(time.Minute), 2)
}

func TestPollOnceFeedsPolicy(t *testing.T) {
	p, _, _ := newTestPoller()
	pol := &fakePolicy{}
	p.policy = pol

	p.pollOnce()
	p.pollOnce()

	require.Len(t, pol.samples, 2)
	assert.True(t, pol.samples[1].OnAC)
	assert.Equal(t, 1, pol.samples[1].ExternalCount)
}

func TestPollGapTriggersResume(t *testing.T) {
	p, _, r := newTestPoller()
	p.recorder.AddRecord(time.Now().Add(-5 * time.Minute))

	p.pollOnce()

	assert.Equal(t, 1, r.resumes)
	// Records before the gap are dropped.
	assert.Len(t, p.recorder.LastPollTimes, 1)
}

func TestPollGapAfterReportedResume(t *testing.T) {
	p, _, r := newTestPoller()
	p.recorder.AddRecord(time.Now().Add(-5 * time.Minute))
	r.lastResume = time.Now().Add(-time.Second)

	p.pollOnce()

	assert.Equal(t, 0, r.resumes)
}
