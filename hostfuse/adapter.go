// Package hostfuse adapts a core.Filesystem to the pathfs flavor of
// github.com/hanwen/go-fuse/v2: the flat, path-keyed FUSE interface, not
// the node-embedding API. This single-directory format has no hierarchy
// for inodes to embed, so the path-keyed surface matches the domain
// directly. Adapter contains no filesystem logic of its own; every method
// is a mechanical translation between fuse types and core.Filesystem.
package hostfuse

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/blkfs/blkfs/core"
	"github.com/blkfs/blkfs/errors"
)

// Adapter implements pathfs.FileSystem by forwarding every call to a
// core.Filesystem, except Utimens, which reports success and changes
// nothing. It is constructed once per mount and is not safe for
// concurrent use by more than one pathfs.PathNodeFs.
type Adapter struct {
	pathfs.FileSystem
	fs core.Filesystem
}

// New wraps fs as a pathfs.FileSystem.
func New(fs core.Filesystem) *Adapter {
	return &Adapter{FileSystem: pathfs.NewDefaultFileSystem(), fs: fs}
}

func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	driverErr, ok := err.(errors.DriverError)
	if !ok {
		return fuse.EIO
	}
	switch driverErr.Errno() {
	case errors.EOK:
		return fuse.OK
	case errors.ENOENT:
		return fuse.ENOENT
	case errors.EBADF:
		return fuse.EBADF
	case errors.EEXIST:
		return fuse.Status(syscall.EEXIST)
	case errors.ENOTDIR:
		return fuse.ENOTDIR
	case errors.EINVAL:
		return fuse.EINVAL
	case errors.ENOSPC:
		return fuse.Status(syscall.ENOSPC)
	case errors.ENAMETOOLONG:
		return fuse.Status(syscall.ENAMETOOLONG)
	default:
		return fuse.EIO
	}
}

func withLeadingSlash(name string) string {
	if name == "" {
		return "/"
	}
	return "/" + name
}

// GetAttr reports the metadata core.Filesystem holds for name, translated
// into a fuse.Attr.
func (a *Adapter) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	attr, err := a.fs.Getattr(withLeadingSlash(name))
	if err != nil {
		return nil, toStatus(err)
	}

	mode := attr.Mode
	if attr.IsDir {
		mode |= core.ModeDir
	} else {
		mode |= core.ModeReg
	}

	return &fuse.Attr{
		Mode:  mode,
		Size:  uint64(attr.Size),
		Owner: fuse.Owner{Uid: attr.UID, Gid: attr.GID},
		Atime: uint64(attr.AccessTime),
		Mtime: uint64(attr.ModTime),
		Ctime: uint64(attr.ChangeTime),
		Nlink: attr.Nlink,
	}, fuse.OK
}

func (a *Adapter) Chmod(name string, mode uint32, context *fuse.Context) fuse.Status {
	return toStatus(a.fs.Chmod(withLeadingSlash(name), mode))
}

func (a *Adapter) Chown(name string, uid uint32, gid uint32, context *fuse.Context) fuse.Status {
	return toStatus(a.fs.Chown(withLeadingSlash(name), uid, gid))
}

func (a *Adapter) Utimens(name string, atime *time.Time, mtime *time.Time, context *fuse.Context) fuse.Status {
	return fuse.OK
}

func (a *Adapter) Truncate(name string, size uint64, context *fuse.Context) fuse.Status {
	return toStatus(a.fs.Truncate(withLeadingSlash(name), int64(size)))
}

func (a *Adapter) Unlink(name string, context *fuse.Context) fuse.Status {
	return toStatus(a.fs.Unlink(withLeadingSlash(name)))
}

func (a *Adapter) Rename(oldName string, newName string, context *fuse.Context) fuse.Status {
	return toStatus(a.fs.Rename(withLeadingSlash(oldName), withLeadingSlash(newName)))
}

// Open resolves name through core.Filesystem and returns a pathFile
// remembering it, so subsequent Read/Write/Truncate/Release calls can be
// routed by path without any handle bookkeeping in this package.
func (a *Adapter) Open(name string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	path := withLeadingSlash(name)
	if err := a.fs.Open(path, context.Owner.Uid, context.Owner.Gid); err != nil {
		return nil, toStatus(err)
	}
	return newPathFile(a.fs, path), fuse.OK
}

// Create makes a new file and immediately opens it, mirroring the FUSE
// create+open fast path.
func (a *Adapter) Create(name string, flags uint32, mode uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	path := withLeadingSlash(name)
	if err := a.fs.Create(path, mode, context.Owner.Uid, context.Owner.Gid); err != nil {
		return nil, toStatus(err)
	}
	return newPathFile(a.fs, path), fuse.OK
}

func (a *Adapter) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	names, err := a.fs.Readdir(withLeadingSlash(name))
	if err != nil {
		return nil, toStatus(err)
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, n := range names {
		mode := core.ModeReg
		if n == "." || n == ".." {
			mode = core.ModeDir
		}
		entries = append(entries, fuse.DirEntry{Name: n, Mode: mode})
	}
	return entries, fuse.OK
}
