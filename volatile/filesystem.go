// Package volatile implements an in-memory, non-persistent variant of the
// core operation contract. It keeps an ordered slice of records instead of
// a block device, FAT, or BLT, and is useful as a reference oracle for the
// create/write/read, rename-replace and truncate scenarios. It is not
// persisted, and it does not enforce the on-disk variant's file-count and
// name-length limits or its owner check in Open; its Read and Write errors
// also differ (see Read and Write).
package volatile

import (
	"time"

	"github.com/blkfs/blkfs/core"
	"github.com/blkfs/blkfs/errors"
)

type record struct {
	name       string
	data       []byte
	mode       uint32
	uid        uint32
	gid        uint32
	accessTime int64
	modTime    int64
	changeTime int64
}

// FileSystem is the in-memory Filesystem implementation. The zero value is
// ready to use; Init and Destroy are no-ops since there is nothing to open
// or flush.
type FileSystem struct {
	records []*record
}

var _ core.Filesystem = (*FileSystem)(nil)

// New returns an empty FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

func (fs *FileSystem) Init() error    { return nil }
func (fs *FileSystem) Destroy() error { return nil }

func now() int64 {
	return time.Now().Unix()
}

func stripLeadingSlash(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func (fs *FileSystem) find(name string) *record {
	for _, r := range fs.records {
		if r.name == name {
			return r
		}
	}
	return nil
}

func (fs *FileSystem) Create(path string, mode uint32, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	if fs.find(name) != nil {
		return errors.ErrExists
	}
	ts := now()
	fs.records = append(fs.records, &record{
		name:       name,
		mode:       mode,
		uid:        uid,
		gid:        gid,
		accessTime: ts,
		modTime:    ts,
		changeTime: ts,
	})
	return nil
}

func (fs *FileSystem) Unlink(path string) error {
	name := stripLeadingSlash(path)
	for i, r := range fs.records {
		if r.name == name {
			fs.records = append(fs.records[:i], fs.records[i+1:]...)
			return nil
		}
	}
	return errors.ErrNotFound
}

func (fs *FileSystem) Rename(oldPath, newPath string) error {
	oldName := stripLeadingSlash(oldPath)
	newName := stripLeadingSlash(newPath)

	r := fs.find(oldName)
	if r == nil {
		return errors.ErrNotFound
	}
	if existing := fs.find(newName); existing != nil {
		if err := fs.Unlink(newPath); err != nil {
			return err
		}
	}
	r.name = newName
	ts := now()
	r.modTime = ts
	r.changeTime = ts
	return nil
}

func (fs *FileSystem) Getattr(path string) (core.Attr, error) {
	if path == "/" {
		return core.Attr{Mode: core.RootDirMode, Nlink: 2, IsDir: true}, nil
	}

	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return core.Attr{}, errors.ErrNotFound
	}

	r.accessTime = now()
	return core.Attr{
		Mode:       r.mode,
		UID:        r.uid,
		GID:        r.gid,
		Size:       int64(len(r.data)),
		AccessTime: r.accessTime,
		ModTime:    r.modTime,
		ChangeTime: r.changeTime,
		Nlink:      1,
	}, nil
}

func (fs *FileSystem) Chmod(path string, mode uint32) error {
	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return errors.ErrNotFound
	}
	r.mode = mode
	r.changeTime = now()
	return nil
}

func (fs *FileSystem) Chown(path string, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return errors.ErrNotFound
	}
	r.uid = uid
	r.gid = gid
	r.changeTime = now()
	return nil
}

// Open reports -ENOENT when the file is missing, matching the reference
// implementation's findFile-based open; there is no owner check here, only
// core.FileSystem enforces one.
func (fs *FileSystem) Open(path string, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	if fs.find(name) == nil {
		return errors.ErrNotFound
	}
	return nil
}

// Read copies up to len(buf) bytes starting at offset, returning -EINVAL if
// offset is past the end of the file, where the on-disk variant returns a
// zero-length short read.
func (fs *FileSystem) Read(path string, buf []byte, offset int64) (int, error) {
	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return 0, errors.ErrNotFound
	}

	if offset > int64(len(r.data)) {
		return 0, errors.ErrInvalidArgument
	}

	n := int64(len(r.data)) - offset
	if n > int64(len(buf)) {
		n = int64(len(buf))
	}
	copy(buf, r.data[offset:offset+n])
	return int(n), nil
}

// Write copies buf into the file at offset, growing it as needed. A missing
// file is reported as -EBADF, where the on-disk variant reports -ENOENT.
func (fs *FileSystem) Write(path string, buf []byte, offset int64) (int, error) {
	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return 0, errors.ErrInvalidFileDescriptor
	}

	needed := offset + int64(len(buf))
	if needed > int64(len(r.data)) {
		grown := make([]byte, needed)
		copy(grown, r.data)
		r.data = grown
	}
	copy(r.data[offset:], buf)

	ts := now()
	r.modTime = ts
	r.changeTime = ts
	return len(buf), nil
}

func (fs *FileSystem) Truncate(path string, size int64) error {
	name := stripLeadingSlash(path)
	r := fs.find(name)
	if r == nil {
		return errors.ErrNotFound
	}

	resized := make([]byte, size)
	copy(resized, r.data)
	r.data = resized

	ts := now()
	r.modTime = ts
	r.changeTime = ts
	return nil
}

func (fs *FileSystem) Release(path string) error {
	name := stripLeadingSlash(path)
	if fs.find(name) == nil {
		return errors.ErrNotFound
	}
	return nil
}

func (fs *FileSystem) Readdir(path string) ([]string, error) {
	if path != "/" {
		return nil, errors.ErrNotADirectory
	}

	entries := []string{".", ".."}
	for _, r := range fs.records {
		entries = append(entries, r.name)
	}
	return entries, nil
}
