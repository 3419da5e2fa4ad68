package daemon

import (
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/config"
	"github.com/ladapp/lad/pkg/powerscheme"
)

// configBaselineStore keeps the power baselines in the config file.
type configBaselineStore struct {
	conf config.Config
	log  logrus.FieldLogger
}

func (s configBaselineStore) LoadBaseline() powerscheme.Baseline {
	var b powerscheme.Baseline
	if v, ok := s.conf.OriginalHibernateTimeout(); ok {
		b.HibernateTimeout = &v
	}
	if raw := s.conf.OriginalPowerSchemeGUID(); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.log.Warnf("CONFIG: ignoring invalid power scheme baseline %q: %v", raw, err)
		} else {
			b.Scheme = &id
		}
	}
	return b
}

// SaveBaseline writes captured values. An empty baseline clears both; a
// single nil field leaves the stored value alone.
func (s configBaselineStore) SaveBaseline(b powerscheme.Baseline) error {
	if b.HibernateTimeout == nil && b.Scheme == nil {
		s.conf.ClearBaselines()
	}
	if b.HibernateTimeout != nil {
		s.conf.SetOriginalHibernateTimeout(*b.HibernateTimeout)
	}
	if b.Scheme != nil {
		s.conf.SetOriginalPowerSchemeGUID(b.Scheme.String())
	}
	if err := s.conf.Save(); err != nil {
		return pkgerrors.Wrapf(err, "failed to save power baseline")
	}
	return nil
}
