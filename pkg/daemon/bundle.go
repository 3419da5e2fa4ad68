package daemon

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/syserr"
	"github.com/ladapp/lad/pkg/types"
)

type step struct {
	name string
	// run returns an optional detail string for the report.
	run func() (string, error)
	// skipIf is consulted right before run. A non-empty reason records the
	// step as skipped.
	skipIf func() string
}

// bundleRunner runs steps in order. A failing step never stops the ones
// after it.
type bundleRunner struct {
	log     logrus.FieldLogger
	metrics *Metrics
}

func (b bundleRunner) run(direction types.Direction, forced bool, steps []step) *types.BundleReport {
	report := &types.BundleReport{Direction: direction, Forced: forced, Started: time.Now()}

	for _, s := range steps {
		report.Steps = append(report.Steps, b.runStep(direction, s))
	}

	report.Took = time.Since(report.Started)
	b.metrics.observeBundle(report)
	return report
}

func (b bundleRunner) runStep(direction types.Direction, s step) (res types.StepResult) {
	res.Step = s.name
	start := time.Now()
	defer func() {
		// A panicking OS call must not take the rest of the bundle with it.
		if r := recover(); r != nil {
			res.Took = time.Since(start)
			res.Outcome = types.OutcomeFailed
			res.Kind = syserr.KindName(syserr.ErrTransient)
			res.Error = fmt.Sprintf("panic: %v", r)
			b.log.WithField("step", s.name).Errorf("POLICY: %s %s panicked: %v", direction, s.name, r)
		}
		b.metrics.observeStep(direction, res)
	}()

	var reason string
	if s.skipIf != nil {
		reason = s.skipIf()
	}
	if reason != "" {
		res.Outcome = types.OutcomeSkipped
		res.Detail = reason
		b.log.WithField("step", s.name).Debugf("POLICY: skipping %s: %s", s.name, reason)
		return res
	}

	detail, err := s.run()
	res.Took = time.Since(start)
	res.Detail = detail

	entry := b.log.WithFields(logrus.Fields{
		"step": s.name,
		"took": res.Took,
	})
	if err != nil {
		res.Outcome = types.OutcomeFailed
		res.Kind = syserr.KindName(err)
		res.Error = err.Error()
		res.Hint = syserr.Hint(err)
		if errors.Is(err, syserr.ErrNotApplicable) {
			entry.Infof("POLICY: %s %s not applicable: %v", direction, s.name, err)
		} else if res.Hint != "" {
			entry.Warnf("POLICY: %s %s failed (%s): %v", direction, s.name, res.Hint, err)
		} else {
			entry.Warnf("POLICY: %s %s failed: %v", direction, s.name, err)
		}
		return res
	}

	res.Outcome = types.OutcomeOK
	entry.Debugf("POLICY: %s %s done", direction, s.name)
	return res
}
