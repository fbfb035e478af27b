// File: control/hotreload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reloads a config file into a ConfigStore when it changes on disk. The
// watch and the debounce timer are loop handles, so reloads run on the loop
// goroutine.

package control

import (
	"path/filepath"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/rs/zerolog"
)

const reloadDebounce = 50 * time.Millisecond

// Reloader owns the handles behind WatchConfig.
type Reloader struct {
	watch *uv.FsWatch
	delay *uv.Timer
}

// WatchConfig reloads path into store after changes settle. Invalid files
// are logged and leave the store untouched. Both handles are unreferenced.
func WatchConfig(l *uv.Loop, path string, store *ConfigStore, log zerolog.Logger) (*Reloader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	delay, err := uv.NewTimer(l)
	if err != nil {
		return nil, err
	}
	watch, err := uv.NewFsWatch(l)
	if err != nil {
		delay.Close()
		return nil, err
	}
	r := &Reloader{watch: watch, delay: delay}

	emitter.On(delay, func(uv.TimerEvent, *uv.Timer) {
		cfg, err := LoadConfig(abs)
		if err == nil {
			err = store.SetConfig(cfg)
		}
		if err != nil {
			log.Warn().Err(err).Str("path", abs).Msg("config reload rejected")
			return
		}
		log.Info().Str("path", abs).Msg("config reloaded")
	})
	emitter.On(watch, func(ev uv.FsWatchEvent, _ *uv.FsWatch) {
		if ev.Filename != filepath.Base(abs) {
			return
		}
		if err := delay.Start(reloadDebounce, 0); err != nil {
			log.Debug().Err(err).Msg("config reload not scheduled")
		}
	})
	emitter.On(watch, func(ev api.ErrorEvent, _ *uv.FsWatch) {
		log.Warn().Str("error", ev.Name()).Msg("config watch failed")
	})

	// Watch the directory: editors replace files by rename.
	if err := watch.Start(filepath.Dir(abs), 0); err != nil {
		r.Close()
		return nil, err
	}
	watch.Unreference()
	delay.Unreference()
	return r, nil
}

// Close stops watching.
func (r *Reloader) Close() {
	r.watch.Close()
	r.delay.Close()
}
