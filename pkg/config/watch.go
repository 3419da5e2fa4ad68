package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reports changes to a single config file. Editors often replace the
// file instead of writing it in place, so the parent directory is watched and
// events are filtered by name.
type Watcher struct {
	target  string
	watcher *fsnotify.Watcher
}

func NewWatcher(configPath string) (*Watcher, error) {
	target, err := filepath.Abs(configPath)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to resolve config path %s", configPath)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create config watcher")
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return nil, pkgerrors.Wrapf(err, "failed to watch %s", filepath.Dir(target))
	}

	return &Watcher{target: filepath.Clean(target), watcher: w}, nil
}

// Run sends one value on changed for every burst of writes to the config
// file. It blocks until ctx is done or the underlying watcher is closed.
func (w *Watcher) Run(ctx context.Context, changed chan<- struct{}) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(reloadDebounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
