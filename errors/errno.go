// Package errors defines the POSIX-errno error values this module's
// operations return. The block device, BLT, FAT, and core packages never
// return a bare int; they return a DriverError that carries the Errno the
// host adapter translates into a FUSE status for the caller.
package errors

import (
	"fmt"
	"syscall"
)

// Errno is a POSIX error number, stored and compared as a positive value.
// hostfuse maps it to the matching fuse.Status; cmd/blkfsmount prints the
// error's message.
type Errno int

const (
	EOK          Errno = 0
	ENOENT       Errno = Errno(syscall.ENOENT)
	EIO          Errno = Errno(syscall.EIO)
	EBADF        Errno = Errno(syscall.EBADF)
	EEXIST       Errno = Errno(syscall.EEXIST)
	ENOTDIR      Errno = Errno(syscall.ENOTDIR)
	EINVAL       Errno = Errno(syscall.EINVAL)
	ENOSPC       Errno = Errno(syscall.ENOSPC)
	ENAMETOOLONG Errno = Errno(syscall.ENAMETOOLONG)
)

var errorMessagesByCode = map[Errno]string{
	ENOENT:       "No such file or directory",
	EIO:          "Input/output error",
	EBADF:        "Bad file descriptor",
	EEXIST:       "File exists",
	ENOTDIR:      "Not a directory",
	EINVAL:       "Invalid argument",
	ENOSPC:       "No space left on device",
	ENAMETOOLONG: "File name too long",
}

var ErrNotFound = New(ENOENT)
var ErrIOFailed = New(EIO)
var ErrInvalidFileDescriptor = New(EBADF)
var ErrExists = New(EEXIST)
var ErrNotADirectory = New(ENOTDIR)
var ErrInvalidArgument = New(EINVAL)
var ErrNoSpaceOnDevice = New(ENOSPC)
var ErrNameTooLong = New(ENAMETOOLONG)

// StrError returns the canonical message for an Errno, matching strerror(3)
// for the subset of codes this file system can produce.
func StrError(code Errno) string {
	message, ok := errorMessagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized", int(code))
}
