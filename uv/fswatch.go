// File: uv/fswatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FsWatch publishes file system change notifications from fsnotify.

package uv

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/momentics/hioload-uv/emitter"
)

// FsWatchFlags modify Start.
type FsWatchFlags int

const (
	// FsWatchRecursive watches every directory below the path.
	FsWatchRecursive FsWatchFlags = 1 << iota
)

// FsChange classifies a notification.
type FsChange int

const (
	// FsWatchRename covers creation, removal and renames.
	FsWatchRename FsChange = 1 << iota
	// FsWatchChange covers content and attribute changes.
	FsWatchChange
)

// FsWatchEvent reports a change below the watched path. Filename is
// relative to the watched directory, or the base name for a watched file.
type FsWatchEvent struct {
	Filename string
	Flags    FsChange
}

// FsWatch is a change-notification handle.
type FsWatch struct {
	Handle[FsWatch]
	watcher   *fsnotify.Watcher
	path      string
	recursive bool
}

// NewFsWatch creates and initializes a file system watch handle.
func NewFsWatch(l *Loop) (*FsWatch, error) {
	w := &FsWatch{}
	w.bind(l, w, FsWatchHandle)
	w.teardown = w.release
	return initialized(w, w.Init())
}

// Init allocates the native watcher.
func (w *FsWatch) Init() error {
	return w.init("fs watch init", func() error {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		w.watcher = fw
		go w.relay(fw)
		return nil
	})
}

// Start watches path, replacing a previous watch.
func (w *FsWatch) Start(path string, flags FsWatchFlags) error {
	const op = "fs watch start"
	if err := w.check(op); err != nil {
		return err
	}
	if path == "" {
		return errArg(op, "empty path")
	}
	w.unwatch()
	if err := w.watcher.Add(path); err != nil {
		return errOp(op, err)
	}
	w.path = path
	w.recursive = flags&FsWatchRecursive != 0
	if w.recursive {
		if err := w.addTree(path); err != nil {
			w.unwatch()
			return errOp(op, err)
		}
	}
	w.setActive(true)
	return nil
}

// Stop stops watching.
func (w *FsWatch) Stop() error {
	if err := w.check("fs watch stop"); err != nil {
		return err
	}
	w.unwatch()
	w.setActive(false)
	return nil
}

// Path returns the watched path.
func (w *FsWatch) Path() string {
	return w.path
}

func (w *FsWatch) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != root {
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *FsWatch) unwatch() {
	for _, p := range w.watcher.WatchList() {
		_ = w.watcher.Remove(p)
	}
	w.path = ""
}

func (w *FsWatch) release() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *FsWatch) relay(fw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.loop.post(func() { w.deliver(ev) })
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.loop.post(func() {
				if w.state == StateActive {
					w.fail(err)
				}
			})
		}
	}
}

func (w *FsWatch) deliver(ev fsnotify.Event) {
	if w.state != StateActive || ev.Op == 0 {
		return
	}
	var flags FsChange
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		flags |= FsWatchRename
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Chmod) {
		flags |= FsWatchChange
	}
	if w.recursive && ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addTree(ev.Name)
			_ = w.watcher.Add(ev.Name)
		}
	}
	name := filepath.Base(ev.Name)
	if rel, err := filepath.Rel(w.path, ev.Name); err == nil && rel != "." {
		name = rel
	}
	emitter.Publish[FsWatchEvent, FsWatch](w, FsWatchEvent{Filename: name, Flags: flags})
}
