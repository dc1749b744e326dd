// Package block implements the block device layer of blkfs: a fixed-size
// block array laid over a single backing stream. It knows nothing about
// FAT entries, BLT successors, or file chains — it only seeks and reads or
// writes whole blocks.
package block

import (
	"io"
	"os"

	"github.com/blkfs/blkfs/errors"
)

// Size is the number of bytes per block.
const Size = 512

// Device is a byte-addressed stream treated as an array of fixed-size
// blocks. It performs no caching: every ReadBlock/WriteBlock call does
// exactly one seek and exactly one read or write.
type Device struct {
	stream io.ReadWriteSeeker
	closer io.Closer
}

// NewFromStream wraps an already-open stream as a Device, without owning
// its lifecycle (Close becomes a no-op). Used by tests to drive the block
// layer against an in-memory backing store instead of a real file.
func NewFromStream(stream io.ReadWriteSeeker) *Device {
	return &Device{stream: stream}
}

// Create creates the backing file; if it already exists it is truncated to
// zero length. The file is not pre-sized — later writes to
// high block numbers extend it sparsely.
func Create(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return &Device{stream: file, closer: file}, nil
}

// Open opens an existing backing file read/write. It fails with ErrNotFound
// if the file is missing.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if os.IsNotExist(err) {
		return nil, errors.ErrNotFound.WithMessage(path)
	}
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return &Device{stream: file, closer: file}, nil
}

// Close releases the backing file, if this Device owns one.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	if err := d.closer.Close(); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (d *Device) seekToBlock(blockNo uint32) error {
	_, err := d.stream.Seek(int64(blockNo)*Size, io.SeekStart)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// ReadBlock reads exactly Size bytes from block blockNo into buf. buf must
// be exactly Size bytes long; a short read is reported as EIO.
func (d *Device) ReadBlock(blockNo uint32, buf []byte) error {
	if len(buf) != Size {
		return errors.ErrInvalidArgument.WithMessage("buffer must be exactly one block")
	}
	if err := d.seekToBlock(blockNo); err != nil {
		return err
	}
	n, err := io.ReadFull(d.stream, buf)
	if err != nil || n != Size {
		return errors.ErrIOFailed.WithMessage("short read of block")
	}
	return nil
}

// WriteBlock writes exactly Size bytes from buf to block blockNo. buf must
// be exactly Size bytes long; a short write is reported as EIO.
func (d *Device) WriteBlock(blockNo uint32, buf []byte) error {
	if len(buf) != Size {
		return errors.ErrInvalidArgument.WithMessage("buffer must be exactly one block")
	}
	if err := d.seekToBlock(blockNo); err != nil {
		return err
	}
	n, err := d.stream.Write(buf)
	if err != nil || n != Size {
		return errors.ErrIOFailed.WithMessage("short write of block")
	}
	return nil
}
