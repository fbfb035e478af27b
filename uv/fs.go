// File: uv/fs.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FsReq issues one file system operation on the thread pool. Every operation
// completes with a single FsEvent or ErrorEvent.

package uv

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/momentics/hioload-uv/emitter"
)

// FsType names the operation an FsReq performed.
type FsType int

const (
	FsUnknown FsType = iota
	FsOpen
	FsClose
	FsRead
	FsWrite
	FsSendfile
	FsStat
	FsLstat
	FsFstat
	FsFtruncate
	FsUtime
	FsFutime
	FsAccess
	FsChmod
	FsFchmod
	FsFsync
	FsFdatasync
	FsUnlink
	FsRmdir
	FsMkdir
	FsMkdtemp
	FsMkstemp
	FsRename
	FsScandir
	FsLink
	FsSymlink
	FsReadlink
	FsRealpath
	FsChown
	FsLchown
	FsCopyfile
)

var fsTypeNames = [...]string{
	FsUnknown: "unknown", FsOpen: "open", FsClose: "close", FsRead: "read",
	FsWrite: "write", FsSendfile: "sendfile", FsStat: "stat", FsLstat: "lstat",
	FsFstat: "fstat", FsFtruncate: "ftruncate", FsUtime: "utime",
	FsFutime: "futime", FsAccess: "access", FsChmod: "chmod", FsFchmod: "fchmod",
	FsFsync: "fsync", FsFdatasync: "fdatasync", FsUnlink: "unlink",
	FsRmdir: "rmdir", FsMkdir: "mkdir", FsMkdtemp: "mkdtemp",
	FsMkstemp: "mkstemp", FsRename: "rename", FsScandir: "scandir",
	FsLink: "link", FsSymlink: "symlink", FsReadlink: "readlink",
	FsRealpath: "realpath", FsChown: "chown", FsLchown: "lchown",
	FsCopyfile: "copyfile",
}

func (t FsType) String() string {
	if int(t) < len(fsTypeNames) {
		return fsTypeNames[t]
	}
	return "unknown"
}

// DirEntry is one Scandir result.
type DirEntry struct {
	Name string
	Type fs.FileMode // type bits only
}

// FsEvent carries the result of a file system request. Only the fields
// relevant to Type are set.
type FsEvent struct {
	Type    FsType
	Path    string
	Result  int64 // bytes transferred, or entries scanned
	File    *os.File
	Data    []byte
	Stat    FileInfo
	Entries []DirEntry
	Target  string // resolved or created path
}

// CopyFlags modify Copyfile.
type CopyFlags int

const (
	// CopyExcl fails when the destination exists.
	CopyExcl CopyFlags = 1 << iota
)

// FsReq is a one-shot file system request.
type FsReq struct {
	Request[FsReq]
	kind FsType
}

// NewFs creates a file system request.
func NewFs(l *Loop) *FsReq {
	r := &FsReq{}
	r.bind(l, r, FsRequest)
	return r
}

// Kind returns the operation issued, FsUnknown before.
func (r *FsReq) Kind() FsType {
	return r.kind
}

func (r *FsReq) run(kind FsType, path string, fn func(ev *FsEvent) error) error {
	ev := FsEvent{Type: kind, Path: path}
	if err := r.schedule("fs "+kind.String(), func() error { return fn(&ev) }, func() {
		emitter.Publish[FsEvent, FsReq](r, ev)
	}); err != nil {
		return err
	}
	r.kind = kind
	return nil
}

func (r *FsReq) needFile(kind FsType, f *os.File) error {
	if f == nil {
		return errArg("fs "+kind.String(), "nil file")
	}
	return nil
}

// Open opens path; FsEvent.File holds the file.
func (r *FsReq) Open(path string, flags int, mode fs.FileMode) error {
	return r.run(FsOpen, path, func(ev *FsEvent) error {
		f, err := os.OpenFile(path, flags, mode)
		ev.File = f
		return err
	})
}

// Close closes f.
func (r *FsReq) Close(f *os.File) error {
	if err := r.needFile(FsClose, f); err != nil {
		return err
	}
	return r.run(FsClose, f.Name(), func(*FsEvent) error { return f.Close() })
}

// Read reads up to length bytes at offset; a negative offset reads from the
// current position. Reading at end of file yields an empty result.
func (r *FsReq) Read(f *os.File, offset int64, length int) error {
	if err := r.needFile(FsRead, f); err != nil {
		return err
	}
	if length < 0 {
		return errArg("fs read", "negative length")
	}
	return r.run(FsRead, f.Name(), func(ev *FsEvent) error {
		buf := make([]byte, length)
		var n int
		var err error
		if offset < 0 {
			n, err = f.Read(buf)
		} else {
			n, err = f.ReadAt(buf, offset)
		}
		if errors.Is(err, io.EOF) {
			err = nil
		}
		ev.Data, ev.Result = buf[:n], int64(n)
		return err
	})
}

// Write writes data at offset; a negative offset writes at the current
// position.
func (r *FsReq) Write(f *os.File, data []byte, offset int64) error {
	if err := r.needFile(FsWrite, f); err != nil {
		return err
	}
	return r.run(FsWrite, f.Name(), func(ev *FsEvent) error {
		var n int
		var err error
		if offset < 0 {
			n, err = f.Write(data)
		} else {
			n, err = f.WriteAt(data, offset)
		}
		ev.Result = int64(n)
		return err
	})
}

// Sendfile copies length bytes of in starting at offset to out.
func (r *FsReq) Sendfile(out, in *os.File, offset, length int64) error {
	if err := r.needFile(FsSendfile, out); err != nil {
		return err
	}
	if err := r.needFile(FsSendfile, in); err != nil {
		return err
	}
	return r.run(FsSendfile, in.Name(), func(ev *FsEvent) error {
		n, err := io.Copy(out, io.NewSectionReader(in, offset, length))
		ev.Result = n
		return err
	})
}

// Stat stats path following symlinks.
func (r *FsReq) Stat(path string) error {
	return r.run(FsStat, path, func(ev *FsEvent) error {
		fi, err := os.Stat(path)
		if err == nil {
			ev.Stat = fileInfoOf(fi)
		}
		return err
	})
}

// Lstat stats path without following a final symlink.
func (r *FsReq) Lstat(path string) error {
	return r.run(FsLstat, path, func(ev *FsEvent) error {
		fi, err := os.Lstat(path)
		if err == nil {
			ev.Stat = fileInfoOf(fi)
		}
		return err
	})
}

// Fstat stats an open file.
func (r *FsReq) Fstat(f *os.File) error {
	if err := r.needFile(FsFstat, f); err != nil {
		return err
	}
	return r.run(FsFstat, f.Name(), func(ev *FsEvent) error {
		fi, err := f.Stat()
		if err == nil {
			ev.Stat = fileInfoOf(fi)
		}
		return err
	})
}

// Fsync flushes f to storage.
func (r *FsReq) Fsync(f *os.File) error {
	if err := r.needFile(FsFsync, f); err != nil {
		return err
	}
	return r.run(FsFsync, f.Name(), func(*FsEvent) error { return f.Sync() })
}

// Fdatasync flushes f's data, skipping metadata where the system allows.
func (r *FsReq) Fdatasync(f *os.File) error {
	if err := r.needFile(FsFdatasync, f); err != nil {
		return err
	}
	return r.run(FsFdatasync, f.Name(), func(*FsEvent) error { return fdatasync(f) })
}

// Ftruncate resizes f.
func (r *FsReq) Ftruncate(f *os.File, size int64) error {
	if err := r.needFile(FsFtruncate, f); err != nil {
		return err
	}
	return r.run(FsFtruncate, f.Name(), func(*FsEvent) error { return f.Truncate(size) })
}

// Fchmod changes the mode of f.
func (r *FsReq) Fchmod(f *os.File, mode fs.FileMode) error {
	if err := r.needFile(FsFchmod, f); err != nil {
		return err
	}
	return r.run(FsFchmod, f.Name(), func(*FsEvent) error { return f.Chmod(mode) })
}

// Futime sets access and modification times of f.
func (r *FsReq) Futime(f *os.File, atime, mtime time.Time) error {
	if err := r.needFile(FsFutime, f); err != nil {
		return err
	}
	return r.run(FsFutime, f.Name(), func(*FsEvent) error { return os.Chtimes(f.Name(), atime, mtime) })
}

// Unlink removes a file. Directories are rejected.
func (r *FsReq) Unlink(path string) error {
	return r.run(FsUnlink, path, func(*FsEvent) error { return unlink(path) })
}

// Mkdir creates a directory.
func (r *FsReq) Mkdir(path string, mode fs.FileMode) error {
	return r.run(FsMkdir, path, func(*FsEvent) error { return os.Mkdir(path, mode) })
}

// Mkdtemp creates a unique directory from a template ending in XXXXXX.
// FsEvent.Target holds the created path.
func (r *FsReq) Mkdtemp(template string) error {
	dir, pattern, err := splitTemplate("fs mkdtemp", template)
	if err != nil {
		return err
	}
	return r.run(FsMkdtemp, template, func(ev *FsEvent) error {
		p, err := os.MkdirTemp(dir, pattern)
		ev.Target = p
		return err
	})
}

// Mkstemp creates and opens a unique file from a template ending in XXXXXX.
func (r *FsReq) Mkstemp(template string) error {
	dir, pattern, err := splitTemplate("fs mkstemp", template)
	if err != nil {
		return err
	}
	return r.run(FsMkstemp, template, func(ev *FsEvent) error {
		f, err := os.CreateTemp(dir, pattern)
		if err == nil {
			ev.File, ev.Target = f, f.Name()
		}
		return err
	})
}

func splitTemplate(op, template string) (string, string, error) {
	base := filepath.Base(template)
	if !strings.HasSuffix(base, "XXXXXX") {
		return "", "", errArg(op, "template must end with XXXXXX")
	}
	return filepath.Dir(template), strings.TrimSuffix(base, "XXXXXX") + "*", nil
}

// Rmdir removes an empty directory.
func (r *FsReq) Rmdir(path string) error {
	return r.run(FsRmdir, path, func(*FsEvent) error { return rmdir(path) })
}

// Scandir lists a directory in name order.
func (r *FsReq) Scandir(path string) error {
	return r.run(FsScandir, path, func(ev *FsEvent) error {
		entries, err := os.ReadDir(path)
		for _, e := range entries {
			ev.Entries = append(ev.Entries, DirEntry{Name: e.Name(), Type: e.Type()})
		}
		ev.Result = int64(len(ev.Entries))
		return err
	})
}

// Rename moves oldPath to newPath.
func (r *FsReq) Rename(oldPath, newPath string) error {
	return r.run(FsRename, oldPath, func(ev *FsEvent) error {
		ev.Target = newPath
		return os.Rename(oldPath, newPath)
	})
}

// Copyfile copies src to dst, preserving the mode bits.
func (r *FsReq) Copyfile(src, dst string, flags CopyFlags) error {
	return r.run(FsCopyfile, src, func(ev *FsEvent) error {
		ev.Target = dst
		n, err := copyFile(src, dst, flags)
		ev.Result = n
		return err
	})
}

func copyFile(src, dst string, flags CopyFlags) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return 0, err
	}
	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if flags&CopyExcl != 0 {
		mode |= os.O_EXCL
	}
	out, err := os.OpenFile(dst, mode, fi.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Access checks the accessibility of path against a mode made of R_OK,
// W_OK and X_OK bits; zero checks existence.
func (r *FsReq) Access(path string, mode uint32) error {
	return r.run(FsAccess, path, func(*FsEvent) error { return access(path, mode) })
}

// Chmod changes the mode of path.
func (r *FsReq) Chmod(path string, mode fs.FileMode) error {
	return r.run(FsChmod, path, func(*FsEvent) error { return os.Chmod(path, mode) })
}

// Utime sets access and modification times of path.
func (r *FsReq) Utime(path string, atime, mtime time.Time) error {
	return r.run(FsUtime, path, func(*FsEvent) error { return os.Chtimes(path, atime, mtime) })
}

// Link creates a hard link newPath to oldPath.
func (r *FsReq) Link(oldPath, newPath string) error {
	return r.run(FsLink, oldPath, func(ev *FsEvent) error {
		ev.Target = newPath
		return os.Link(oldPath, newPath)
	})
}

// Symlink creates a symbolic link newPath pointing to oldPath.
func (r *FsReq) Symlink(oldPath, newPath string) error {
	return r.run(FsSymlink, oldPath, func(ev *FsEvent) error {
		ev.Target = newPath
		return os.Symlink(oldPath, newPath)
	})
}

// Readlink reads a symbolic link; FsEvent.Target holds its content.
func (r *FsReq) Readlink(path string) error {
	return r.run(FsReadlink, path, func(ev *FsEvent) error {
		t, err := os.Readlink(path)
		ev.Target = t
		return err
	})
}

// Realpath resolves path to an absolute path without symlinks.
func (r *FsReq) Realpath(path string) error {
	return r.run(FsRealpath, path, func(ev *FsEvent) error {
		p, err := filepath.EvalSymlinks(path)
		if err != nil {
			return err
		}
		ev.Target, err = filepath.Abs(p)
		return err
	})
}

// Chown changes the owner of path.
func (r *FsReq) Chown(path string, uid, gid int) error {
	return r.run(FsChown, path, func(*FsEvent) error { return os.Chown(path, uid, gid) })
}

// Lchown changes the owner of path without following a final symlink.
func (r *FsReq) Lchown(path string, uid, gid int) error {
	return r.run(FsLchown, path, func(*FsEvent) error { return os.Lchown(path, uid, gid) })
}
