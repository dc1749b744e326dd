// Package blt implements the Block Linkage Table: a dense, per-block
// successor table encoding every file's block chain plus the free/reserved
// state of every block on the volume.
package blt

import (
	"encoding/binary"

	"github.com/boljen/go-bitmap"
	"github.com/noxer/bytewriter"

	"github.com/blkfs/blkfs/block"
	"github.com/blkfs/blkfs/errors"
)

const (
	// TotalBlocks is the number of addressable blocks on the volume.
	TotalBlocks = 65536
	// Blocks is the number of on-disk blocks the BLT itself occupies.
	Blocks = 256
	// StartBlock is the first block holding BLT data.
	StartBlock = 8
	// EntriesPerBlock is the number of 2-byte successor entries per BLT
	// block.
	EntriesPerBlock = 256
)

// Sentinel successor values.
const (
	Free     uint16 = 0x0000
	EOF      uint16 = 0x0001
	Reserved uint16 = 0x0002
)

// Table is the in-memory Block Linkage Table: one successor per block on
// the volume, plus a first-fit free/allocated bitmap kept in lock-step so
// FindFree doesn't have to linearly rescan the successor array itself.
type Table struct {
	successors []uint16
	allocated  bitmap.Bitmap
}

// New returns a freshly formatted Table: the reserved region (FAT + BLT
// blocks) is Reserved and permanently allocated; every other block is Free.
func New(reservedBlocks uint32) *Table {
	t := &Table{
		successors: make([]uint16, TotalBlocks),
		allocated:  bitmap.New(TotalBlocks),
	}
	for b := uint32(0); b < reservedBlocks; b++ {
		t.successors[b] = Reserved
		t.allocated.Set(int(b), true)
	}
	return t
}

// Load reads the BLT from blocks StartBlock..StartBlock+Blocks-1 of dev.
func Load(dev *block.Device) (*Table, error) {
	t := &Table{
		successors: make([]uint16, TotalBlocks),
		allocated:  bitmap.New(TotalBlocks),
	}

	buf := make([]byte, block.Size)
	for i := 0; i < Blocks; i++ {
		if err := dev.ReadBlock(StartBlock+uint32(i), buf); err != nil {
			return nil, err
		}
		for j := 0; j < EntriesPerBlock; j++ {
			entry := binary.LittleEndian.Uint16(buf[j*2 : j*2+2])
			blockID := uint32(i*EntriesPerBlock + j)
			t.successors[blockID] = entry
			t.allocated.Set(int(blockID), entry != Free)
		}
	}
	return t, nil
}

// Persist re-encodes all TotalBlocks successors and writes them to blocks
// StartBlock..StartBlock+Blocks-1 of dev (full-table rewrite on every
// mutation, same rationale as the FAT: the table is tiny, so there is no
// dirty-entry tracking to get wrong).
func (t *Table) Persist(dev *block.Device) error {
	for i := 0; i < Blocks; i++ {
		buf := make([]byte, block.Size)
		w := bytewriter.New(buf)
		for j := 0; j < EntriesPerBlock; j++ {
			blockID := uint32(i*EntriesPerBlock + j)
			if err := binary.Write(w, binary.LittleEndian, t.successors[blockID]); err != nil {
				return errors.ErrIOFailed.Wrap(err)
			}
		}
		if err := dev.WriteBlock(StartBlock+uint32(i), buf); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the raw successor value stored for block b.
func (t *Table) Get(b uint32) uint16 {
	return t.successors[b]
}

// SetEOF marks block b as the last block of some file's chain.
func (t *Table) SetEOF(b uint32) {
	t.successors[b] = EOF
	t.allocated.Set(int(b), true)
}

// SetNext links block b to successor next in some file's chain.
func (t *Table) SetNext(b uint32, next uint32) {
	t.successors[b] = uint16(next)
	t.allocated.Set(int(b), true)
}

// SetFree releases block b back to the free pool. It must not be one of the
// permanently Reserved blocks.
func (t *Table) SetFree(b uint32) {
	t.successors[b] = Free
	t.allocated.Set(int(b), false)
}

// FindFree returns the lowest-numbered Free block, or -ENOSPC if none
// remain. First-fit by lowest index keeps allocation deterministic for
// testing.
func (t *Table) FindFree() (uint32, error) {
	for i := 0; i < TotalBlocks; i++ {
		if !t.allocated.Get(i) {
			return uint32(i), nil
		}
	}
	return 0, errors.ErrNoSpaceOnDevice
}

// ChainOf follows count successors starting at start and returns the block
// IDs visited, in order. The final block's successor must be EOF; any
// other value (including Free or Reserved) means the chain is malformed
// and is reported as EIO.
func (t *Table) ChainOf(start uint32, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}

	chain := make([]uint32, 0, count)
	current := start
	for i := uint32(0); i < count; i++ {
		chain = append(chain, current)

		successor := t.successors[current]
		isLast := i == count-1
		switch successor {
		case Free, Reserved:
			return nil, errors.ErrIOFailed.WithMessage("chain references a free or reserved block")
		case EOF:
			if !isLast {
				return nil, errors.ErrIOFailed.WithMessage("chain ended early")
			}
		default:
			if isLast {
				return nil, errors.ErrIOFailed.WithMessage("chain did not end in EOF")
			}
			current = uint32(successor)
		}
	}
	return chain, nil
}
