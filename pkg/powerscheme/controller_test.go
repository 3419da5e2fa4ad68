package powerscheme

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/syserr"
)

type settingKey struct {
	scheme, subgroup, setting uuid.UUID
}

type fakeAPI struct {
	active    uuid.UUID
	values    map[settingKey]uint32
	activates int
	writes    int
	readErr   error
	writeErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		active: SchemeBalanced,
		values: map[settingKey]uint32{
			{SchemeBalanced, SubgroupButtons, LidCloseAction}:        uint32(LidSleep),
			{SchemeBalanced, SubgroupSleep, HibernateTimeout}:        10800,
			{SchemeBalanced, SubgroupUSB, USBSelectiveSuspend}:       1,
			{SchemeHighPerformance, SubgroupSleep, HibernateTimeout}: 0,
		},
	}
}

func (f *fakeAPI) ActiveScheme() (uuid.UUID, error) { return f.active, nil }

func (f *fakeAPI) ReadACValue(scheme, subgroup, setting uuid.UUID) (uint32, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.values[settingKey{scheme, subgroup, setting}], nil
}

func (f *fakeAPI) WriteACValue(scheme, subgroup, setting uuid.UUID, value uint32) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.values[settingKey{scheme, subgroup, setting}] = value
	return nil
}

func (f *fakeAPI) SetActiveScheme(scheme uuid.UUID) error {
	f.activates++
	f.active = scheme
	return nil
}

type memStore struct {
	b     Baseline
	saves int
}

func (m *memStore) LoadBaseline() Baseline { return m.b }

func (m *memStore) SaveBaseline(b Baseline) error {
	m.saves++
	m.b = b
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestLidCloseAction(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	require.NoError(t, c.SetLidCloseAction(LidDoNothing))
	got, err := c.LidCloseAction()
	require.NoError(t, err)
	assert.Equal(t, LidDoNothing, got)
	assert.Equal(t, 1, api.activates, "write must re-activate the scheme")

	require.NoError(t, c.SetLidCloseAction(LidSleep))
	got, err = c.LidCloseAction()
	require.NoError(t, err)
	assert.Equal(t, LidSleep, got)
}

func TestHibernateRoundTrip(t *testing.T) {
	api := newFakeAPI()
	store := &memStore{}
	c := NewWithAPI(api, store, Options{}, quietLogger())

	require.NoError(t, c.SetHibernateNever())
	v, err := c.HibernateTimeout()
	require.NoError(t, err)
	assert.Equal(t, HibernateNever, v)
	require.NotNil(t, store.b.HibernateTimeout)
	assert.Equal(t, uint32(10800), *store.b.HibernateTimeout)

	// Applying again must not capture the overridden value.
	require.NoError(t, c.SetHibernateNever())
	assert.Equal(t, uint32(10800), *c.Baseline().HibernateTimeout)
	assert.Equal(t, 1, store.saves)

	require.NoError(t, c.RestoreHibernate())
	v, err = c.HibernateTimeout()
	require.NoError(t, err)
	assert.Equal(t, uint32(10800), v)
}

func TestSchemeRoundTrip(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	require.NoError(t, c.SwitchToHighPerformance())
	assert.Equal(t, SchemeHighPerformance, api.active)
	require.NoError(t, c.SwitchToHighPerformance())
	assert.Equal(t, SchemeBalanced, *c.Baseline().Scheme)

	require.NoError(t, c.RestoreScheme())
	assert.Equal(t, SchemeBalanced, api.active)
}

func TestRestoreWithoutBaselineRefuses(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	err := c.RestoreHibernate()
	assert.ErrorIs(t, err, syserr.ErrNotApplicable)
	err = c.RestoreScheme()
	assert.ErrorIs(t, err, syserr.ErrNotApplicable)
	assert.Zero(t, api.writes)
	assert.Zero(t, api.activates)
}

func TestRestoreWithoutBaselineLiveFallback(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api, nil, Options{LiveFallback: true}, quietLogger())

	require.NoError(t, c.RestoreHibernate())
	require.NoError(t, c.RestoreScheme())
	assert.Equal(t, SchemeBalanced, api.active)
	assert.Equal(t, uint32(10800), *c.Baseline().HibernateTimeout)
}

func TestBaselineLoadedFromStore(t *testing.T) {
	api := newFakeAPI()
	hib := uint32(3600)
	scheme := SchemePowerSaver
	store := &memStore{b: Baseline{HibernateTimeout: &hib, Scheme: &scheme}}
	c := NewWithAPI(api, store, Options{}, quietLogger())

	require.NoError(t, c.SetHibernateNever())
	require.NoError(t, c.RestoreHibernate())
	v, err := c.HibernateTimeout()
	require.NoError(t, err)
	assert.Equal(t, uint32(3600), v)

	require.NoError(t, c.RestoreScheme())
	assert.Equal(t, SchemePowerSaver, api.active)
	assert.Zero(t, store.saves)
}

func TestSeedBaseline(t *testing.T) {
	api := newFakeAPI()
	store := &memStore{}
	c := NewWithAPI(api, store, Options{}, quietLogger())

	c.SeedBaseline()
	b := c.Baseline()
	require.NotNil(t, b.HibernateTimeout)
	require.NotNil(t, b.Scheme)
	assert.Equal(t, uint32(10800), *b.HibernateTimeout)
	assert.Equal(t, SchemeBalanced, *b.Scheme)
}

func TestSeedBaselineSkipsOverriddenValues(t *testing.T) {
	api := newFakeAPI()
	api.active = SchemeHighPerformance
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	c.SeedBaseline()
	b := c.Baseline()
	assert.Nil(t, b.HibernateTimeout)
	assert.Nil(t, b.Scheme)
}

func TestSetHibernateNeverReadFailure(t *testing.T) {
	api := newFakeAPI()
	api.readErr = syserr.FromCode("PowerReadACValueIndex", 5)
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	err := c.SetHibernateNever()
	assert.ErrorIs(t, err, syserr.ErrPermissionDenied)
	assert.Zero(t, api.writes, "must not write without a baseline")
}

func TestWriteFailureIsReturned(t *testing.T) {
	api := newFakeAPI()
	api.writeErr = errors.New("boom")
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	assert.Error(t, c.SetLidCloseAction(LidDoNothing))
	assert.Zero(t, api.activates)
}

func TestTransitionValuesFollowSchemeSwitch(t *testing.T) {
	api := newFakeAPI()
	c := NewWithAPI(api, &memStore{}, Options{}, quietLogger())

	// Enable order: lid, hibernate, then the scheme switch.
	require.NoError(t, c.SetLidCloseAction(LidDoNothing))
	require.NoError(t, c.SetHibernateNever())
	require.NoError(t, c.SwitchToHighPerformance())
	require.Equal(t, SchemeHighPerformance, api.active)

	lid, err := c.LidCloseAction()
	require.NoError(t, err)
	assert.Equal(t, LidDoNothing, lid)
	hib, err := c.HibernateTimeout()
	require.NoError(t, err)
	assert.Equal(t, HibernateNever, hib)

	// Revert order: lid, hibernate, then the scheme restore.
	require.NoError(t, c.SetLidCloseAction(LidSleep))
	require.NoError(t, c.RestoreHibernate())
	require.NoError(t, c.RestoreScheme())
	require.Equal(t, SchemeBalanced, api.active)

	lid, err = c.LidCloseAction()
	require.NoError(t, err)
	assert.Equal(t, LidSleep, lid)
	hib, err = c.HibernateTimeout()
	require.NoError(t, err)
	assert.Equal(t, uint32(10800), hib)
}

func TestMirrorWriteFailureIsIgnored(t *testing.T) {
	api := &mirrorFailAPI{fakeAPI: newFakeAPI()}
	c := NewWithAPI(api, nil, Options{}, quietLogger())

	require.NoError(t, c.SetLidCloseAction(LidDoNothing))
	got, err := c.LidCloseAction()
	require.NoError(t, err)
	assert.Equal(t, LidDoNothing, got)
}

// mirrorFailAPI rejects writes to High performance, as on machines that do
// not ship the scheme.
type mirrorFailAPI struct{ *fakeAPI }

func (f *mirrorFailAPI) WriteACValue(scheme, subgroup, setting uuid.UUID, value uint32) error {
	if scheme == SchemeHighPerformance {
		return syserr.FromCode("PowerWriteACValueIndex", 2)
	}
	return f.fakeAPI.WriteACValue(scheme, subgroup, setting, value)
}

func TestResetBaseline(t *testing.T) {
	api := newFakeAPI()
	store := &memStore{}
	c := NewWithAPI(api, store, Options{}, quietLogger())

	require.NoError(t, c.SwitchToHighPerformance())
	require.NoError(t, c.ResetBaseline())
	assert.Nil(t, c.Baseline().Scheme)
	assert.Nil(t, store.b.Scheme)
}

func TestSchemeName(t *testing.T) {
	assert.Equal(t, "High performance", SchemeName(SchemeHighPerformance))
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, id.String(), SchemeName(id))
}
