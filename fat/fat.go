// Package fat implements the File Allocation Table: the fixed-size array
// of file descriptors living in blocks 0..7 of the container.
//
// Every field is serialized explicitly with encoding/binary, never by
// relying on Go's in-memory struct layout, because the on-disk byte layout
// must be preserved exactly for container compatibility.
package fat

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/blkfs/blkfs/block"
	"github.com/blkfs/blkfs/errors"
)

const (
	// MaxFiles is the number of FAT slots.
	MaxFiles = 64
	// Blocks is the number of on-disk blocks the FAT occupies.
	Blocks = 8
	// EntriesPerBlock is the number of FAT slots packed into one block.
	EntriesPerBlock = 8
	// EntrySize is the number of bytes per on-disk FAT slot.
	EntrySize = 64
	// MaxNameLength is the number of bytes of filename storage.
	MaxNameLength = 32
)

// Entry is one FAT slot. A zero-value Entry (empty Name) is an unused slot.
type Entry struct {
	Name       string
	UID        uint32
	GID        uint32
	Mode       uint32
	AccessTime int32
	ModTime    int32
	ChangeTime int32
	StartBlock uint16
	BlockCount uint16
	Size       int32
}

// IsEmpty reports whether the slot is unused. The name field being all-zero
// is the sole authority for this.
func (e Entry) IsEmpty() bool {
	return e.Name == ""
}

// Table is the in-memory FAT: MaxFiles fixed slots.
type Table struct {
	entries [MaxFiles]Entry
}

// New returns a Table with every slot empty.
func New() *Table {
	return &Table{}
}

// Load reads blocks 0..Blocks-1 of dev and decodes MaxFiles entries.
func Load(dev *block.Device) (*Table, error) {
	t := &Table{}
	buf := make([]byte, block.Size)
	for i := 0; i < Blocks; i++ {
		if err := dev.ReadBlock(uint32(i), buf); err != nil {
			return nil, err
		}
		for j := 0; j < EntriesPerBlock; j++ {
			slot := i*EntriesPerBlock + j
			raw := buf[j*EntrySize : (j+1)*EntrySize]
			entry, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			t.entries[slot] = entry
		}
	}
	return t, nil
}

// Persist re-encodes all MaxFiles entries and writes blocks 0..Blocks-1 of
// dev. Rationale for a full rewrite on every mutation, rather than tracking
// dirty slots: the FAT is 8 blocks (4 KiB) total, so "one operation, one
// flush" is simpler and keeps the FAT authoritative on disk at all times —
// this module's only durability primitive, in lieu of journaling.
func (t *Table) Persist(dev *block.Device) error {
	for i := 0; i < Blocks; i++ {
		buf := make([]byte, block.Size)
		for j := 0; j < EntriesPerBlock; j++ {
			slot := i*EntriesPerBlock + j
			raw, err := encodeEntry(t.entries[slot])
			if err != nil {
				return err
			}
			copy(buf[j*EntrySize:(j+1)*EntrySize], raw)
		}
		if err := dev.WriteBlock(uint32(i), buf); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the entry in slot i.
func (t *Table) Get(i int) Entry {
	return t.entries[i]
}

// Set overwrites the entry in slot i.
func (t *Table) Set(i int, entry Entry) {
	t.entries[i] = entry
}

// Clear resets slot i to its empty normal form.
func (t *Table) Clear(i int) {
	t.entries[i] = Entry{}
}

// Lookup returns the slot index holding name, comparing bytes (no leading
// slash expected — the core strips that before calling). Empty slots never
// match.
func (t *Table) Lookup(name string) (int, error) {
	for i, entry := range t.entries {
		if !entry.IsEmpty() && entry.Name == name {
			return i, nil
		}
	}
	return -1, errors.ErrNotFound
}

// Allocate returns the index of the first unused slot, or -ENOSPC if the
// table is full.
func (t *Table) Allocate() (int, error) {
	for i, entry := range t.entries {
		if entry.IsEmpty() {
			return i, nil
		}
	}
	return -1, errors.ErrNoSpaceOnDevice
}

func encodeEntry(e Entry) ([]byte, error) {
	buf := make([]byte, EntrySize)
	nameBytes := make([]byte, MaxNameLength)
	copy(nameBytes, e.Name)
	copy(buf[0:MaxNameLength], nameBytes)

	w := bytewriter.New(buf[MaxNameLength:])
	fields := []interface{}{e.UID, e.GID, e.Mode, e.AccessTime, e.ModTime, e.ChangeTime, e.StartBlock, e.BlockCount, e.Size}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return nil, errors.ErrIOFailed.Wrap(err)
		}
	}
	return buf, nil
}

func decodeEntry(raw []byte) (Entry, error) {
	nameBytes := bytes.TrimRight(raw[0:MaxNameLength], "\x00")

	r := bytes.NewReader(raw[MaxNameLength:])
	var e Entry
	e.Name = string(nameBytes)
	fields := []interface{}{&e.UID, &e.GID, &e.Mode, &e.AccessTime, &e.ModTime, &e.ChangeTime, &e.StartBlock, &e.BlockCount, &e.Size}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Entry{}, errors.ErrIOFailed.Wrap(err)
		}
	}
	return e, nil
}
