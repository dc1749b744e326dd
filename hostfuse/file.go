package hostfuse

import (
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"

	"github.com/blkfs/blkfs/core"
)

// pathFile is the nodefs.File go-fuse hands back from Adapter.Open and
// Adapter.Create. It carries nothing but the path it was opened with —
// core.Filesystem and volatile.FileSystem key every call by path already,
// so there is no separate handle state to track here.
type pathFile struct {
	nodefs.File
	fs   core.Filesystem
	path string
}

func newPathFile(fs core.Filesystem, path string) nodefs.File {
	return &pathFile{File: nodefs.NewDefaultFile(), fs: fs, path: path}
}

func (f *pathFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := f.fs.Read(f.path, dest, off)
	if err != nil {
		return nil, toStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (f *pathFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.fs.Write(f.path, data, off)
	if err != nil {
		return 0, toStatus(err)
	}
	return uint32(n), fuse.OK
}

func (f *pathFile) Truncate(size uint64) fuse.Status {
	return toStatus(f.fs.Truncate(f.path, int64(size)))
}

func (f *pathFile) Release() {
	_ = f.fs.Release(f.path)
}

func (f *pathFile) Flush() fuse.Status {
	return fuse.OK
}

func (f *pathFile) GetAttr(out *fuse.Attr) fuse.Status {
	attr, err := f.fs.Getattr(f.path)
	if err != nil {
		return toStatus(err)
	}
	out.Mode = attr.Mode | core.ModeReg
	out.Size = uint64(attr.Size)
	out.Owner = fuse.Owner{Uid: attr.UID, Gid: attr.GID}
	out.Atime = uint64(attr.AccessTime)
	out.Mtime = uint64(attr.ModTime)
	out.Ctime = uint64(attr.ChangeTime)
	out.Nlink = attr.Nlink
	return fuse.OK
}
