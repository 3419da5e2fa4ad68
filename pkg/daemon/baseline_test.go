package daemon

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/powerscheme"
	"github.com/ladapp/lad/pkg/utils/ptr"
)

func newTestBaselineStore(t *testing.T) (configBaselineStore, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	f, err := config.NewFile(p)
	require.NoError(t, err)
	return configBaselineStore{conf: f, log: quietLogger()}, p
}

func TestConfigBaselineStoreEmpty(t *testing.T) {
	s, _ := newTestBaselineStore(t)

	b := s.LoadBaseline()
	assert.Nil(t, b.HibernateTimeout)
	assert.Nil(t, b.Scheme)
}

func TestConfigBaselineStorePersists(t *testing.T) {
	s, p := newTestBaselineStore(t)
	scheme := uuid.MustParse("381b4222-f694-41f0-9685-ff5bb260df2e")

	require.NoError(t, s.SaveBaseline(powerscheme.Baseline{
		HibernateTimeout: ptr.To(uint32(0)),
		Scheme:           &scheme,
	}))

	// A fresh config from the same file sees both values.
	f, err := config.NewFile(p)
	require.NoError(t, err)
	b := configBaselineStore{conf: f, log: quietLogger()}.LoadBaseline()
	require.NotNil(t, b.HibernateTimeout)
	assert.Equal(t, uint32(0), *b.HibernateTimeout)
	require.NotNil(t, b.Scheme)
	assert.Equal(t, scheme, *b.Scheme)
}

func TestConfigBaselineStorePartialSave(t *testing.T) {
	s, _ := newTestBaselineStore(t)
	scheme := uuid.MustParse("8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c")
	require.NoError(t, s.SaveBaseline(powerscheme.Baseline{HibernateTimeout: ptr.To(uint32(10800)), Scheme: &scheme}))

	require.NoError(t, s.SaveBaseline(powerscheme.Baseline{HibernateTimeout: ptr.To(uint32(600))}))

	b := s.LoadBaseline()
	assert.Equal(t, uint32(600), *b.HibernateTimeout)
	require.NotNil(t, b.Scheme)
	assert.Equal(t, scheme, *b.Scheme)
}

func TestConfigBaselineStoreClear(t *testing.T) {
	s, _ := newTestBaselineStore(t)
	scheme := uuid.MustParse("8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c")
	require.NoError(t, s.SaveBaseline(powerscheme.Baseline{HibernateTimeout: ptr.To(uint32(10800)), Scheme: &scheme}))

	require.NoError(t, s.SaveBaseline(powerscheme.Baseline{}))

	b := s.LoadBaseline()
	assert.Nil(t, b.HibernateTimeout)
	assert.Nil(t, b.Scheme)
}

func TestConfigBaselineStoreInvalidGUID(t *testing.T) {
	s, _ := newTestBaselineStore(t)
	s.conf.SetOriginalPowerSchemeGUID("not-a-guid")

	assert.Nil(t, s.LoadBaseline().Scheme)
}
