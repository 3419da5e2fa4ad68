// Package powerscheme reads and writes the AC lid-close action, hibernate
// timeout and active power scheme, and remembers the original values so they
// can be restored exactly.
package powerscheme

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/syserr"
	"github.com/ladapp/lad/pkg/utils/lazy"
)

// LidAction is the AC lid-close action.
type LidAction uint32

const (
	LidDoNothing LidAction = 0
	LidSleep     LidAction = 1
	LidHibernate LidAction = 2
	LidShutdown  LidAction = 3
)

func (a LidAction) String() string {
	switch a {
	case LidDoNothing:
		return "Do Nothing"
	case LidSleep:
		return "Sleep"
	case LidHibernate:
		return "Hibernate"
	case LidShutdown:
		return "Shut Down"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(a))
	}
}

// HibernateNever disables hibernation.
const HibernateNever uint32 = 0

// API is the OS power-scheme surface.
type API interface {
	ActiveScheme() (uuid.UUID, error)
	ReadACValue(scheme, subgroup, setting uuid.UUID) (uint32, error)
	WriteACValue(scheme, subgroup, setting uuid.UUID, value uint32) error
	SetActiveScheme(scheme uuid.UUID) error
}

// Baseline holds the values to restore on revert. Nil fields were never
// captured.
type Baseline struct {
	HibernateTimeout *uint32    `json:"hibernateTimeout,omitempty"`
	Scheme           *uuid.UUID `json:"scheme,omitempty"`
}

// BaselineStore persists baselines across restarts.
type BaselineStore interface {
	LoadBaseline() Baseline
	SaveBaseline(Baseline) error
}

type Options struct {
	// LiveFallback restores to the value read at restore time when no
	// baseline was captured, instead of refusing.
	LiveFallback bool
}

type Controller struct {
	api   API
	store BaselineStore
	opts  Options
	log   logrus.FieldLogger

	// mu serializes read-modify-write sequences on the active scheme.
	mu        sync.Mutex
	hibernate lazy.Value[uint32]
	scheme    lazy.Value[uuid.UUID]
}

// New returns a Controller backed by the operating system. store may be nil,
// in which case baselines only live in memory.
func New(store BaselineStore, opts Options, log logrus.FieldLogger) *Controller {
	return NewWithAPI(NativeAPI(), store, opts, log)
}

func NewWithAPI(api API, store BaselineStore, opts Options, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Controller{api: api, store: store, opts: opts, log: log}
	if store != nil {
		b := store.LoadBaseline()
		if b.HibernateTimeout != nil {
			c.hibernate.Set(*b.HibernateTimeout)
		}
		if b.Scheme != nil {
			c.scheme.Set(*b.Scheme)
		}
	}
	return c
}

// SetOptions replaces the controller options.
func (c *Controller) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Baseline returns the captured baselines.
func (c *Controller) Baseline() Baseline {
	var b Baseline
	if v, ok := c.hibernate.Peek(); ok {
		b.HibernateTimeout = &v
	}
	if v, ok := c.scheme.Peek(); ok {
		b.Scheme = &v
	}
	return b
}

// ResetBaseline forgets both baselines in memory and in the store.
func (c *Controller) ResetBaseline() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hibernate.Invalidate()
	c.scheme.Invalidate()
	if c.store == nil {
		return nil
	}
	return c.store.SaveBaseline(Baseline{})
}

// SeedBaseline captures any missing baseline from the live system. A live
// value equal to what the engine itself writes is not captured, since it may
// be left over from a previous run that never reverted.
func (c *Controller) SeedBaseline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.hibernate.Peek(); !ok {
		v, err := c.readActive(SubgroupSleep, HibernateTimeout)
		switch {
		case err != nil:
			c.log.Debugf("POWER: could not seed hibernate timeout baseline: %v", err)
		case v == HibernateNever:
			c.log.Debug("POWER: hibernate timeout is already 'Never', not seeding baseline")
		default:
			c.captureHibernate(v)
		}
	}
	if _, ok := c.scheme.Peek(); !ok {
		id, err := c.api.ActiveScheme()
		switch {
		case err != nil:
			c.log.Debugf("POWER: could not seed power scheme baseline: %v", err)
		case id == SchemeHighPerformance:
			c.log.Debug("POWER: active scheme is already High performance, not seeding baseline")
		default:
			c.captureScheme(id)
		}
	}
}

// LidCloseAction returns the current AC lid-close action.
func (c *Controller) LidCloseAction() (LidAction, error) {
	v, err := c.readActive(SubgroupButtons, LidCloseAction)
	return LidAction(v), err
}

// SetLidCloseAction writes the AC lid-close action on the active scheme.
// Do Nothing is also written to High performance, any other action to the
// scheme baseline, so the value survives the scheme switch that follows.
func (c *Controller) SetLidCloseAction(action LidAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	mirror := c.baselineScheme()
	if action == LidDoNothing {
		mirror = SchemeHighPerformance
	}
	err := c.writeActive(SubgroupButtons, LidCloseAction, uint32(action), mirror)
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("POWER: failed to set lid close action to '%s': %v", action, err)
		return err
	}
	entry.Infof("POWER: lid close action set to '%s'", action)
	return nil
}

// HibernateTimeout returns the current AC hibernate timeout in seconds.
func (c *Controller) HibernateTimeout() (uint32, error) {
	return c.readActive(SubgroupSleep, HibernateTimeout)
}

// SetHibernateNever sets the AC hibernate timeout to never, capturing the
// current value as the baseline first if none exists.
func (c *Controller) SetHibernateNever() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if _, ok := c.hibernate.Peek(); !ok {
		v, err := c.readActive(SubgroupSleep, HibernateTimeout)
		if err != nil {
			// Writing without a baseline would lose the original value.
			c.log.Warnf("POWER: failed to read hibernate timeout before override: %v", err)
			return err
		}
		c.captureHibernate(v)
	}

	err := c.writeActive(SubgroupSleep, HibernateTimeout, HibernateNever, SchemeHighPerformance)
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("POWER: failed to set hibernate timeout to 'Never': %v", err)
		return err
	}
	orig, _ := c.hibernate.Peek()
	entry.Infof("POWER: hibernate timeout set to 'Never' (original: %d seconds)", orig)
	return nil
}

// RestoreHibernate writes the hibernate timeout baseline back.
func (c *Controller) RestoreHibernate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	orig, ok := c.hibernate.Peek()
	if !ok {
		if !c.opts.LiveFallback {
			c.log.Warn("POWER: no hibernate timeout baseline captured, leaving current value")
			return syserr.New(syserr.ErrNotApplicable, "RestoreHibernate", pkgerrors.New("no baseline captured"))
		}
		v, err := c.readActive(SubgroupSleep, HibernateTimeout)
		if err != nil {
			return err
		}
		c.log.Warnf("POWER: no hibernate timeout baseline, using current value %d seconds", v)
		c.captureHibernate(v)
		orig = v
	}

	err := c.writeActive(SubgroupSleep, HibernateTimeout, orig, c.baselineScheme())
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("POWER: failed to restore hibernate timeout: %v", err)
		return err
	}
	entry.Infof("POWER: hibernate timeout restored to %d seconds", orig)
	return nil
}

// ActiveScheme returns the active power scheme.
func (c *Controller) ActiveScheme() (uuid.UUID, error) {
	return c.api.ActiveScheme()
}

// SwitchToHighPerformance activates the High performance scheme, capturing
// the active scheme as the baseline first if none exists.
func (c *Controller) SwitchToHighPerformance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if _, ok := c.scheme.Peek(); !ok {
		id, err := c.api.ActiveScheme()
		if err != nil {
			c.log.Warnf("POWER: failed to read active scheme before override: %v", err)
			return err
		}
		c.captureScheme(id)
	}

	err := c.api.SetActiveScheme(SchemeHighPerformance)
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("POWER: failed to switch to High performance profile: %v", err)
		return err
	}
	orig, _ := c.scheme.Peek()
	entry.Infof("POWER: switched to High performance profile (original: %s)", orig)
	return nil
}

// RestoreScheme activates the scheme baseline.
func (c *Controller) RestoreScheme() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	orig, ok := c.scheme.Peek()
	if !ok {
		if !c.opts.LiveFallback {
			c.log.Warn("POWER: no power scheme baseline captured, leaving current scheme")
			return syserr.New(syserr.ErrNotApplicable, "RestoreScheme", pkgerrors.New("no baseline captured"))
		}
		id, err := c.api.ActiveScheme()
		if err != nil {
			return err
		}
		c.log.Warnf("POWER: no power scheme baseline, using current scheme %s", id)
		c.captureScheme(id)
		orig = id
	}

	err := c.api.SetActiveScheme(orig)
	entry := c.log.WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("POWER: failed to restore power scheme: %v", err)
		return err
	}
	entry.Infof("POWER: power scheme restored to '%s'", SchemeName(orig))
	return nil
}

// WriteActiveSchemeValue writes one AC value on the active scheme and
// re-applies the scheme so the change takes effect.
func (c *Controller) WriteActiveSchemeValue(subgroup, setting uuid.UUID, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeActive(subgroup, setting, value)
}

// ReadActiveSchemeValue reads one AC value from the active scheme.
func (c *Controller) ReadActiveSchemeValue(subgroup, setting uuid.UUID) (uint32, error) {
	return c.readActive(subgroup, setting)
}

func (c *Controller) readActive(subgroup, setting uuid.UUID) (uint32, error) {
	scheme, err := c.api.ActiveScheme()
	if err != nil {
		return 0, err
	}
	return c.api.ReadACValue(scheme, subgroup, setting)
}

// writeActive writes value on the active scheme and on each mirror scheme
// that is not the active one. A failed mirror write is only logged. It must
// be called with c.mu held.
func (c *Controller) writeActive(subgroup, setting uuid.UUID, value uint32, mirrors ...uuid.UUID) error {
	scheme, err := c.api.ActiveScheme()
	if err != nil {
		return err
	}
	if err := c.api.WriteACValue(scheme, subgroup, setting, value); err != nil {
		return err
	}
	for _, m := range mirrors {
		if m == uuid.Nil || m == scheme {
			continue
		}
		if err := c.api.WriteACValue(m, subgroup, setting, value); err != nil {
			c.log.Debugf("POWER: could not write %s on scheme '%s': %v", setting, SchemeName(m), err)
		}
	}
	// The raw write has no effect until the scheme is applied again.
	return c.api.SetActiveScheme(scheme)
}

// baselineScheme returns the captured scheme baseline, or uuid.Nil.
func (c *Controller) baselineScheme() uuid.UUID {
	id, _ := c.scheme.Peek()
	return id
}

func (c *Controller) captureHibernate(v uint32) {
	if !c.hibernate.SetIfAbsent(v) {
		return
	}
	c.log.Infof("POWER: captured hibernate timeout baseline: %d seconds", v)
	c.persist()
}

func (c *Controller) captureScheme(id uuid.UUID) {
	if !c.scheme.SetIfAbsent(id) {
		return
	}
	c.log.Infof("POWER: captured power scheme baseline: %s", id)
	c.persist()
}

func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveBaseline(c.Baseline()); err != nil {
		c.log.Errorf("CONFIG: failed to persist power baseline: %v", err)
	}
}
