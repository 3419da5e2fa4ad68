package probe

// Fan is a fan reported by the firmware.
type Fan struct {
	Name         string
	DesiredSpeed uint64
}

// FanSource lists fans and their speeds.
type FanSource interface {
	Fans() ([]Fan, error)
}

// FanSpeeds returns the non-zero fan speeds in RPM keyed by fan name. Most
// machines do not expose fans, in which case the map is empty.
func (p *Probe) FanSpeeds() (map[string]uint64, error) {
	speeds := map[string]uint64{}
	if p.fans == nil {
		return speeds, nil
	}
	fans, err := p.fans.Fans()
	if err != nil {
		return speeds, err
	}
	for _, f := range fans {
		if f.Name == "" || f.DesiredSpeed == 0 {
			continue
		}
		speeds[f.Name] = f.DesiredSpeed
	}
	return speeds, nil
}
