package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ladapp/lad/pkg/utils/ptr"
)

const (
	minPollIntervalSeconds = 1
	maxResumeDelayMillis   = 60_000
)

var (
	defaultFileConfig = &RawFileConfig{
		FirstRun:                  ptr.To(true),
		BatteryHealthGuardEnabled: ptr.To(false),
		AllowNonRootAccess:        ptr.To(false),
		PollIntervalSeconds:       ptr.To(2),
		ResumeDelayMilliseconds:   ptr.To(2000),
		// Restoring to a value read at revert time can "restore" to an
		// already overridden value, so this stays off unless asked for.
		LiveBaselineFallback: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	FirstRun                     *bool   `json:"firstRun,omitempty"`
	OriginalHibernateTimeout     *uint32 `json:"originalHibernateTimeout,omitempty"`
	OriginalPowerSchemeGUID      *string `json:"originalPowerSchemeGuid,omitempty"`
	BatteryHealthGuardEnabled    *bool   `json:"batteryHealthGuardEnabled,omitempty"`
	LastVersion                  *string `json:"lastVersion,omitempty"`
	SelectedKeyboardInstancePath *string `json:"selectedKeyboardInstancePath,omitempty"`
	SelectedMouseInstancePath    *string `json:"selectedMouseInstancePath,omitempty"`
	LaptopOrientation            *string `json:"laptopOrientation,omitempty"`
	AllowNonRootAccess           *bool   `json:"allowNonRootAccess,omitempty"`
	PollIntervalSeconds          *int    `json:"pollIntervalSeconds,omitempty"`
	ResumeDelayMilliseconds      *int    `json:"resumeDelayMilliseconds,omitempty"`
	LiveBaselineFallback         *bool   `json:"liveBaselineFallback,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		FirstRun:                     ptr.To(c.FirstRun()),
		BatteryHealthGuardEnabled:    ptr.To(c.BatteryHealthGuardEnabled()),
		AllowNonRootAccess:           ptr.To(c.AllowNonRootAccess()),
		PollIntervalSeconds:          ptr.To(int(c.PollInterval() / time.Second)),
		ResumeDelayMilliseconds:      ptr.To(int(c.ResumeDelay() / time.Millisecond)),
		LiveBaselineFallback:         ptr.To(c.LiveBaselineFallback()),
		LastVersion:                  nonEmpty(c.LastVersion()),
		SelectedKeyboardInstancePath: nonEmpty(c.SelectedKeyboardInstancePath()),
		SelectedMouseInstancePath:    nonEmpty(c.SelectedMouseInstancePath()),
		LaptopOrientation:            nonEmpty(c.LaptopOrientation()),
		OriginalPowerSchemeGUID:      nonEmpty(c.OriginalPowerSchemeGUID()),
	}
	if v, ok := c.OriginalHibernateTimeout(); ok {
		rawConfig.OriginalHibernateTimeout = ptr.To(v)
	}

	return rawConfig, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Path returns the file this config is loaded from.
func (f *File) Path() string {
	return f.filepath
}

func (f *File) FirstRun() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.FirstRun, *defaultFileConfig.FirstRun)
}

func (f *File) OriginalHibernateTimeout() (uint32, bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.OriginalHibernateTimeout == nil {
		return 0, false
	}
	return *f.c.OriginalHibernateTimeout, true
}

func (f *File) OriginalPowerSchemeGUID() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.OriginalPowerSchemeGUID, "")
}

func (f *File) BatteryHealthGuardEnabled() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.BatteryHealthGuardEnabled, *defaultFileConfig.BatteryHealthGuardEnabled)
}

func (f *File) LastVersion() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LastVersion, "")
}

func (f *File) SelectedKeyboardInstancePath() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.SelectedKeyboardInstancePath, "")
}

func (f *File) SelectedMouseInstancePath() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.SelectedMouseInstancePath, "")
}

func (f *File) LaptopOrientation() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LaptopOrientation, "")
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) PollInterval() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	seconds := ptr.Deref(f.c.PollIntervalSeconds, *defaultFileConfig.PollIntervalSeconds)
	if seconds < minPollIntervalSeconds {
		seconds = minPollIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (f *File) ResumeDelay() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	millis := ptr.Deref(f.c.ResumeDelayMilliseconds, *defaultFileConfig.ResumeDelayMilliseconds)
	if millis < 0 {
		millis = 0
	}
	if millis > maxResumeDelayMillis {
		millis = maxResumeDelayMillis
	}
	return time.Duration(millis) * time.Millisecond
}

func (f *File) LiveBaselineFallback() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LiveBaselineFallback, *defaultFileConfig.LiveBaselineFallback)
}

func (f *File) SetFirstRun(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.FirstRun = &b
}

func (f *File) SetOriginalHibernateTimeout(seconds uint32) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.OriginalHibernateTimeout = &seconds
}

func (f *File) SetOriginalPowerSchemeGUID(guid string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.OriginalPowerSchemeGUID = nonEmpty(guid)
}

func (f *File) ClearBaselines() {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.OriginalHibernateTimeout = nil
	f.c.OriginalPowerSchemeGUID = nil
}

func (f *File) SetBatteryHealthGuardEnabled(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.BatteryHealthGuardEnabled = &b
}

func (f *File) SetLastVersion(v string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.LastVersion = nonEmpty(v)
}

func (f *File) SetSelectedKeyboardInstancePath(p string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SelectedKeyboardInstancePath = nonEmpty(p)
}

func (f *File) SetSelectedMouseInstancePath(p string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SelectedMouseInstancePath = nonEmpty(p)
}

func (f *File) SetLaptopOrientation(o string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.LaptopOrientation = nonEmpty(o)
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file is an empty config. Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// json.Decoder cannot tell an empty file apart from a broken one.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	if dir := filepath.Dir(f.filepath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return pkgerrors.Wrapf(err, "failed to create config directory %s", dir)
		}
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	fields := logrus.Fields{
		"firstRun":                  f.FirstRun(),
		"batteryHealthGuardEnabled": f.BatteryHealthGuardEnabled(),
		"originalPowerSchemeGuid":   f.OriginalPowerSchemeGUID(),
		"allowNonRootAccess":        f.AllowNonRootAccess(),
		"pollInterval":              f.PollInterval().String(),
		"resumeDelay":               f.ResumeDelay().String(),
		"liveBaselineFallback":      f.LiveBaselineFallback(),
		"lastVersion":               f.LastVersion(),
	}
	if v, ok := f.OriginalHibernateTimeout(); ok {
		fields["originalHibernateTimeout"] = v
	} else {
		fields["originalHibernateTimeout"] = "unset"
	}

	return fields
}
