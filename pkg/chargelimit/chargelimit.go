// Package chargelimit caps battery charging at 80% through OEM firmware
// management interfaces.
package chargelimit

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/syserr"
	"github.com/ladapp/lad/pkg/utils/lazy"
)

const (
	// GuardLimit is the charge limit applied by the battery health guard.
	GuardLimit = 80
	// NoLimit lets the battery charge fully.
	NoLimit = 100
)

type Controller struct {
	identity Identity
	api      API
	log      logrus.FieldLogger

	manufacturer lazy.Value[string]
	supported    lazy.Value[bool]
}

// New returns a Controller backed by WMI.
func New(log logrus.FieldLogger) *Controller {
	return NewWithAPI(NativeIdentity(), NativeAPI(), log)
}

func NewWithAPI(identity Identity, api API, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{identity: identity, api: api, log: log}
}

// Manufacturer returns the upper-cased, trimmed system manufacturer. It is
// detected once per process.
func (c *Controller) Manufacturer() (string, error) {
	return c.manufacturer.Get(func() (string, error) {
		m, err := c.identity.Manufacturer()
		if err != nil {
			c.log.Debugf("BATTERY: manufacturer detection failed: %v", err)
			return "", err
		}
		return normalize(m), nil
	})
}

// Strategy returns the charge-limit strategy for this machine. ok is false
// when the manufacturer has no known procedure.
func (c *Controller) Strategy() (Strategy, bool) {
	m, err := c.Manufacturer()
	if err != nil {
		return genericStrategy, false
	}
	return StrategyFor(LookupOEM(m))
}

// IsSupported reports whether the OEM management class is present. The
// result is cached for the process lifetime.
func (c *Controller) IsSupported() bool {
	ok, _ := c.supported.Get(func() (bool, error) {
		s, known := c.Strategy()
		if !known {
			return false, nil
		}
		for _, ns := range s.Namespaces {
			if c.api.ClassExists(ns, s.Class) {
				c.log.Infof("BATTERY: found %s interface (%s in %s)", s.Label, s.Class, ns)
				return true, nil
			}
		}
		c.log.Infof("BATTERY: %s interface not available on this machine", s.Label)
		return false, nil
	})
	return ok
}

// Apply caps charging at GuardLimit.
func (c *Controller) Apply() error {
	return c.set(GuardLimit)
}

// Revert removes the cap.
func (c *Controller) Revert() error {
	return c.set(NoLimit)
}

func (c *Controller) set(limit int) error {
	start := time.Now()
	s, known := c.Strategy()
	if !known || !c.IsSupported() {
		m, _ := c.Manufacturer()
		if m == "" {
			m = "unknown manufacturer"
		}
		c.log.Warnf("BATTERY: charge limit not supported on %s, see manual instructions", m)
		return syserr.Newf(syserr.ErrUnsupported, "SetChargeLimit", "no charge-limit interface for %s", m)
	}

	err := s.Set(c.api, limit)
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("BATTERY: failed to set charge limit to %d%% via %s: %v", limit, s.Label, err)
		return err
	}
	if limit >= NoLimit {
		entry.Infof("BATTERY: charge limit removed via %s", s.Label)
	} else {
		entry.Infof("BATTERY: charge limit set to %d%% via %s", limit, s.Label)
	}
	return nil
}

// Instructions returns manual steps for this machine's OEM.
func (c *Controller) Instructions() string {
	s, _ := c.Strategy()
	return s.Instructions
}

// Invalidate forgets the detected manufacturer and support result.
func (c *Controller) Invalidate() {
	c.manufacturer.Invalidate()
	c.supported.Invalidate()
}
