// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package uv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fsDo issues one request through issue, runs the loop and returns the
// terminal event. Exactly one of the results is set.
func fsDo(t *testing.T, l *Loop, issue func(*FsReq) error) (*FsEvent, *api.ErrorEvent) {
	t.Helper()
	req := NewFs(l)
	var ok *FsEvent
	var failed *api.ErrorEvent
	terminal := 0
	emitter.On(req, func(ev FsEvent, _ *FsReq) { ok = &ev; terminal++ })
	emitter.On(req, func(ev api.ErrorEvent, _ *FsReq) { failed = &ev; terminal++ })
	require.NoError(t, issue(req))
	assert.True(t, req.Pending())
	_, err := l.Run(RunDefault)
	require.NoError(t, err)
	require.Equal(t, 1, terminal)
	assert.False(t, req.Pending())
	assert.True(t, req.Closing())
	return ok, failed
}

func TestFsFileLifecycle(t *testing.T) {
	l := newTestLoop(t)
	path := filepath.Join(t.TempDir(), "data.txt")

	ev, _ := fsDo(t, l, func(r *FsReq) error {
		return r.Open(path, os.O_CREATE|os.O_RDWR, 0o644)
	})
	require.NotNil(t, ev)
	assert.Equal(t, FsOpen, ev.Type)
	f := ev.File
	require.NotNil(t, f)

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Write(f, []byte("hello world"), 0) })
	assert.EqualValues(t, 11, ev.Result)

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Read(f, 6, 32) })
	assert.Equal(t, "world", string(ev.Data))
	assert.EqualValues(t, 5, ev.Result)

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Read(f, 100, 8) })
	assert.Empty(t, ev.Data)
	assert.Zero(t, ev.Result)

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Fstat(f) })
	assert.EqualValues(t, 11, ev.Stat.Size)
	assert.False(t, ev.Stat.IsDir())

	for _, issue := range []func(*FsReq) error{
		func(r *FsReq) error { return r.Fsync(f) },
		func(r *FsReq) error { return r.Fdatasync(f) },
		func(r *FsReq) error { return r.Ftruncate(f, 5) },
		func(r *FsReq) error { return r.Fchmod(f, 0o600) },
		func(r *FsReq) error { return r.Futime(f, time.Unix(1000, 0), time.Unix(2000, 0)) },
	} {
		_, failed := fsDo(t, l, issue)
		require.Nil(t, failed)
	}

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Stat(path) })
	assert.EqualValues(t, 5, ev.Stat.Size)
	assert.Equal(t, os.FileMode(0o600), ev.Stat.Mode.Perm())
	assert.True(t, ev.Stat.ModTime.Equal(time.Unix(2000, 0)))

	_, failed := fsDo(t, l, func(r *FsReq) error { return r.Close(f) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Close(f) })
	require.NotNil(t, failed)
}

func TestFsMissingFileFails(t *testing.T) {
	l := newTestLoop(t)
	ev, failed := fsDo(t, l, func(r *FsReq) error {
		return r.Stat(filepath.Join(t.TempDir(), "missing"))
	})
	assert.Nil(t, ev)
	require.NotNil(t, failed)
	assert.Equal(t, api.ENOENT, failed.Code)
	assert.Equal(t, "ENOENT", failed.Name())
}

func TestFsDirectories(t *testing.T) {
	l := newTestLoop(t)
	root := t.TempDir()
	dir := filepath.Join(root, "sub")

	_, failed := fsDo(t, l, func(r *FsReq) error { return r.Mkdir(dir, 0o755) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Mkdir(dir, 0o755) })
	require.NotNil(t, failed)
	assert.Equal(t, api.EEXIST, failed.Code)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c"), 0o755))

	ev, _ := fsDo(t, l, func(r *FsReq) error { return r.Scandir(dir) })
	require.Len(t, ev.Entries, 3)
	assert.EqualValues(t, 3, ev.Result)
	assert.Equal(t, "a", ev.Entries[0].Name)
	assert.True(t, ev.Entries[2].Type.IsDir())

	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Unlink(filepath.Join(dir, "c")) })
	require.NotNil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Rmdir(filepath.Join(dir, "c")) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Unlink(filepath.Join(dir, "a")) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Rmdir(dir) })
	require.NotNil(t, failed)

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Mkdtemp(filepath.Join(root, "tmpXXXXXX")) })
	require.NotNil(t, ev)
	assert.DirExists(t, ev.Target)
	assert.Equal(t, root, filepath.Dir(ev.Target))

	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Mkstemp(filepath.Join(root, "fileXXXXXX")) })
	require.NotNil(t, ev)
	require.NotNil(t, ev.File)
	assert.FileExists(t, ev.Target)
	require.NoError(t, ev.File.Close())

	assert.ErrorIs(t, NewFs(l).Mkdtemp(filepath.Join(root, "bad")), api.ErrInvalidArgument)
}

func TestFsLinksAndCopies(t *testing.T) {
	l := newTestLoop(t)
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))

	dst := filepath.Join(root, "dst")
	ev, _ := fsDo(t, l, func(r *FsReq) error { return r.Copyfile(src, dst, CopyExcl) })
	require.NotNil(t, ev)
	assert.EqualValues(t, 7, ev.Result)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	_, failed := fsDo(t, l, func(r *FsReq) error { return r.Copyfile(src, dst, CopyExcl) })
	require.NotNil(t, failed)
	assert.Equal(t, api.EEXIST, failed.Code)

	link := filepath.Join(root, "link")
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Symlink(src, link) })
	require.Nil(t, failed)
	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Readlink(link) })
	assert.Equal(t, src, ev.Target)
	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Lstat(link) })
	assert.NotZero(t, ev.Stat.Mode&os.ModeSymlink)
	ev, _ = fsDo(t, l, func(r *FsReq) error { return r.Realpath(link) })
	want, err := filepath.EvalSymlinks(src)
	require.NoError(t, err)
	assert.Equal(t, want, ev.Target)

	hard := filepath.Join(root, "hard")
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Link(src, hard) })
	require.Nil(t, failed)
	moved := filepath.Join(root, "moved")
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Rename(hard, moved) })
	require.Nil(t, failed)
	assert.FileExists(t, moved)
	assert.NoFileExists(t, hard)

	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Chmod(moved, 0o600) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Utime(moved, time.Unix(10, 0), time.Unix(20, 0)) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Access(moved, R_OK) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Chown(moved, os.Getuid(), os.Getgid()) })
	require.Nil(t, failed)
	_, failed = fsDo(t, l, func(r *FsReq) error { return r.Lchown(link, os.Getuid(), os.Getgid()) })
	require.Nil(t, failed)
}

func TestFsSendfile(t *testing.T) {
	l := newTestLoop(t)
	root := t.TempDir()
	in, err := os.Create(filepath.Join(root, "in"))
	require.NoError(t, err)
	defer in.Close()
	_, err = in.WriteString("0123456789")
	require.NoError(t, err)
	out, err := os.Create(filepath.Join(root, "out"))
	require.NoError(t, err)
	defer out.Close()

	ev, _ := fsDo(t, l, func(r *FsReq) error { return r.Sendfile(out, in, 2, 5) })
	require.NotNil(t, ev)
	assert.EqualValues(t, 5, ev.Result)
	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "23456", string(data))
}

func TestFsRequestIsOneShot(t *testing.T) {
	l := newTestLoop(t)
	req := NewFs(l)
	assert.Equal(t, FsRequest, req.Type())
	require.NoError(t, req.Stat(t.TempDir()))
	assert.Equal(t, FsStat, req.Kind())
	assert.ErrorIs(t, req.Stat(t.TempDir()), api.ErrInvalidState)
	assert.ErrorIs(t, req.Close(nil), api.ErrInvalidArgument)

	_, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, RequestCompleted, req.State())
	assert.ErrorIs(t, req.Cancel(), api.ErrInvalidState)
}

func TestFsTypeNames(t *testing.T) {
	assert.Equal(t, "rename", FsRename.String())
	assert.NotEqual(t, FsChange(0), FsWatchRename)
	assert.NotEqual(t, FsWatchRename, FsWatchChange)
}
