// Package core implements the file system core: the translation of host
// file operations into block-level reads and writes through the FAT and
// BLT. It is the only package in this module that knows about all three
// layers (block, fat, blt) at once.
package core

// Attr is the subset of file metadata the host operations read or write.
// It is independent of any particular host-adapter representation (FUSE
// attr struct, os.FileInfo, ...).
type Attr struct {
	Mode       uint32
	UID        uint32
	GID        uint32
	Size       int64
	BlockCount uint16
	AccessTime int64
	ModTime    int64
	ChangeTime int64
	IsDir      bool
	Nlink      uint32
}

// Filesystem is the operation contract shared by the on-disk FileSystem in
// this package and the in-memory volatile.FileSystem. A host adapter
// (hostfuse.Adapter) is written against this interface so it can host
// either variant without caring which.
type Filesystem interface {
	Init() error
	Destroy() error

	Create(path string, mode uint32, uid, gid uint32) error
	Unlink(path string) error
	Rename(oldPath, newPath string) error

	Getattr(path string) (Attr, error)
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid uint32) error

	Open(path string, uid, gid uint32) error
	Read(path string, buf []byte, offset int64) (int, error)
	Write(path string, buf []byte, offset int64) (int, error)
	Truncate(path string, size int64) error
	Release(path string) error

	Readdir(path string) ([]string, error)
}
