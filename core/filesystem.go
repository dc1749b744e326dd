package core

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/blkfs/blkfs/block"
	"github.com/blkfs/blkfs/blt"
	"github.com/blkfs/blkfs/errors"
	"github.com/blkfs/blkfs/fat"
)

// ReservedBlocks is the number of blocks permanently occupied by the FAT
// and BLT: blocks 0..ReservedBlocks-1.
const ReservedBlocks = fat.Blocks + blt.Blocks

// DataStart is the first block available for file data.
const DataStart = ReservedBlocks

// FileSystem is the on-disk implementation of Filesystem: it owns a single
// block.Device plus the in-memory FAT and BLT mirrored from it. It is not
// safe for concurrent use — callers must serialize dispatch themselves.
type FileSystem struct {
	containerPath string
	dev           *block.Device
	fat           *fat.Table
	blt           *blt.Table
	log           *logrus.Logger
}

var _ Filesystem = (*FileSystem)(nil)

// New constructs a FileSystem bound to containerPath. Init must be called
// before any other method.
func New(containerPath string, log *logrus.Logger) *FileSystem {
	if log == nil {
		log = logrus.New()
		log.SetOutput(nopWriter{})
	}
	return &FileSystem{containerPath: containerPath, log: log}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func now32() int32 {
	return int32(time.Now().Unix())
}

// Init opens or formats the container. If the container file exists, it
// loads the FAT and BLT from it; otherwise it creates the container and
// formats a fresh, empty volume.
func (fs *FileSystem) Init() error {
	fs.log.WithField("op", "init").WithField("container", fs.containerPath).Info("mounting")

	existing, err := block.Open(fs.containerPath)
	if err == nil {
		fs.dev = existing
		fs.fat, err = fat.Load(fs.dev)
		if err != nil {
			return err
		}
		fs.blt, err = blt.Load(fs.dev)
		if err != nil {
			return err
		}
		fs.log.WithField("op", "init").Info("loaded existing container")
		return nil
	}

	fs.dev, err = block.Create(fs.containerPath)
	if err != nil {
		return err
	}
	fs.fat = fat.New()
	fs.blt = blt.New(ReservedBlocks)
	if err := fs.blt.Persist(fs.dev); err != nil {
		return err
	}
	if err := fs.fat.Persist(fs.dev); err != nil {
		return err
	}
	fs.log.WithField("op", "init").Info("formatted new container")
	return nil
}

// Destroy persists the FAT and BLT and closes the block device. Failures
// in any of the three steps are aggregated rather than dropped, so a
// failing flush is never silently swallowed on unmount.
func (fs *FileSystem) Destroy() error {
	fs.log.WithField("op", "destroy").Info("unmounting")

	var result *multierror.Error
	if err := fs.blt.Persist(fs.dev); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fs.fat.Persist(fs.dev); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fs.dev.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// stripLeadingSlash returns the substring of path after its leading
// slash, which is what FAT entry names are compared against.
func stripLeadingSlash(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func blockCount(size int64) uint16 {
	if size <= 0 {
		return 0
	}
	return uint16((size + block.Size - 1) / block.Size)
}

// Create allocates a FAT slot for path and persists it.
func (fs *FileSystem) Create(path string, mode uint32, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	log := fs.log.WithField("op", "create").WithField("path", path)

	if _, err := fs.fat.Lookup(name); err == nil {
		log.Warn("already exists")
		return errors.ErrExists
	}
	// The name-length check compares the post-slash name, not strlen(path)
	// including the leading slash — see DESIGN.md.
	if len(name) > fat.MaxNameLength {
		log.Warn("name too long")
		return errors.ErrNameTooLong
	}

	slot, err := fs.fat.Allocate()
	if err != nil {
		log.Warn("no free FAT slot")
		return err
	}

	ts := now32()
	fs.fat.Set(slot, fat.Entry{
		Name:       name,
		UID:        uid,
		GID:        gid,
		Mode:       mode,
		AccessTime: ts,
		ModTime:    ts,
		ChangeTime: ts,
		StartBlock: 0,
		BlockCount: 0,
		Size:       0,
	})

	if err := fs.fat.Persist(fs.dev); err != nil {
		return err
	}
	log.Info("created")
	return nil
}

// Unlink frees the file's blocks and clears its FAT slot. The BLT is
// persisted before the FAT: a crash in between leaks a named slot with no
// blocks, which is detectable (not auto-repaired) at the next Init.
func (fs *FileSystem) Unlink(path string) error {
	name := stripLeadingSlash(path)
	log := fs.log.WithField("op", "unlink").WithField("path", path)

	slot, err := fs.fat.Lookup(name)
	if err != nil {
		log.Warn("not found")
		return err
	}

	entry := fs.fat.Get(slot)
	if entry.BlockCount > 0 {
		chain, err := fs.blt.ChainOf(uint32(entry.StartBlock), uint32(entry.BlockCount))
		if err != nil {
			return err
		}
		for _, b := range chain {
			fs.blt.SetFree(b)
		}
		if err := fs.blt.Persist(fs.dev); err != nil {
			return err
		}
	}

	fs.fat.Clear(slot)
	if err := fs.fat.Persist(fs.dev); err != nil {
		return err
	}
	log.Info("unlinked")
	return nil
}

// Rename moves a FAT entry to a new name, replacing any existing entry at
// newPath. The destination name field is fully replaced rather than
// partially overwritten, so no byte of the old destination name survives.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	oldName := stripLeadingSlash(oldPath)
	newName := stripLeadingSlash(newPath)
	log := fs.log.WithField("op", "rename").WithField("old", oldPath).WithField("new", newPath)

	slot, err := fs.fat.Lookup(oldName)
	if err != nil {
		log.Warn("source not found")
		return err
	}

	if _, err := fs.fat.Lookup(newName); err == nil {
		if err := fs.Unlink(newPath); err != nil {
			return err
		}
	}

	if len(newName) > fat.MaxNameLength {
		log.Warn("new name too long")
		return errors.ErrNameTooLong
	}

	entry := fs.fat.Get(slot)
	entry.Name = newName
	ts := now32()
	entry.ModTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)

	if err := fs.fat.Persist(fs.dev); err != nil {
		return err
	}
	log.Info("renamed")
	return nil
}

// Getattr returns the metadata for path, or a synthetic directory entry
// for the root.
func (fs *FileSystem) Getattr(path string) (Attr, error) {
	if path == "/" {
		return Attr{Mode: RootDirMode, Nlink: 2, IsDir: true}, nil
	}

	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return Attr{}, err
	}

	entry := fs.fat.Get(slot)
	ts := now32()
	entry.AccessTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)
	if err := fs.fat.Persist(fs.dev); err != nil {
		return Attr{}, err
	}

	return Attr{
		Mode:       entry.Mode,
		UID:        entry.UID,
		GID:        entry.GID,
		Size:       int64(entry.Size),
		BlockCount: entry.BlockCount,
		AccessTime: int64(entry.AccessTime),
		ModTime:    int64(entry.ModTime),
		ChangeTime: int64(entry.ChangeTime),
		Nlink:      1,
	}, nil
}

// Chmod changes the mode bits of the file at path.
func (fs *FileSystem) Chmod(path string, mode uint32) error {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return err
	}

	entry := fs.fat.Get(slot)
	entry.Mode = mode
	ts := now32()
	entry.ModTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)
	return fs.fat.Persist(fs.dev)
}

// Chown changes the owning uid and gid of the file at path.
func (fs *FileSystem) Chown(path string, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return err
	}

	entry := fs.fat.Get(slot)
	entry.UID = uid
	entry.GID = gid
	ts := now32()
	entry.ModTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)
	return fs.fat.Persist(fs.dev)
}

// Open verifies the caller owns the file by uid or gid before marking it
// accessed, returning ErrNotFound on mismatch. This is a compatibility
// behavior of this on-disk format rather than a real security boundary;
// general permission enforcement is out of scope.
func (fs *FileSystem) Open(path string, uid, gid uint32) error {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return err
	}

	entry := fs.fat.Get(slot)
	if entry.UID != uid && entry.GID != gid {
		return errors.ErrNotFound
	}

	entry.AccessTime = now32()
	fs.fat.Set(slot, entry)
	return fs.fat.Persist(fs.dev)
}

// Read copies up to len(buf) bytes starting at offset into buf, stopping
// at end of file.
func (fs *FileSystem) Read(path string, buf []byte, offset int64) (int, error) {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return 0, err
	}
	entry := fs.fat.Get(slot)

	chain, err := fs.blt.ChainOf(uint32(entry.StartBlock), uint32(entry.BlockCount))
	if err != nil {
		return 0, err
	}

	copied := 0
	wanted := len(buf)
	p := offset
	blockBuf := make([]byte, block.Size)
	for copied < wanted {
		blockIndex := int(p / block.Size)
		if blockIndex >= len(chain) {
			break
		}
		intraOffset := p % block.Size
		chunk := int64(block.Size) - intraOffset

		if p+chunk > int64(entry.Size) {
			chunk = int64(entry.Size) - p
		}
		if chunk <= 0 {
			break
		}
		if p+chunk > offset+int64(wanted) {
			chunk = offset + int64(wanted) - p
		}

		if err := fs.dev.ReadBlock(chain[blockIndex], blockBuf); err != nil {
			return copied, err
		}
		copy(buf[copied:copied+int(chunk)], blockBuf[intraOffset:intraOffset+chunk])

		p += chunk
		copied += int(chunk)
	}

	entry.AccessTime = now32()
	fs.fat.Set(slot, entry)
	if err := fs.fat.Persist(fs.dev); err != nil {
		return copied, err
	}
	return copied, nil
}

// Write copies buf into the file at offset, growing it first if the write
// extends past the current size.
func (fs *FileSystem) Write(path string, buf []byte, offset int64) (int, error) {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return 0, err
	}
	entry := fs.fat.Get(slot)

	needed := offset + int64(len(buf))
	if needed > int64(entry.Size) {
		if err := fs.Truncate(path, needed); err != nil {
			return 0, err
		}
		slot, err = fs.fat.Lookup(name)
		if err != nil {
			return 0, err
		}
		entry = fs.fat.Get(slot)
	}

	chain, err := fs.blt.ChainOf(uint32(entry.StartBlock), uint32(entry.BlockCount))
	if err != nil {
		return 0, err
	}

	written := 0
	wanted := len(buf)
	p := offset
	blockBuf := make([]byte, block.Size)
	for written < wanted {
		blockIndex := int(p / block.Size)
		if blockIndex >= len(chain) {
			break
		}
		intraOffset := p % block.Size
		chunk := int64(block.Size) - intraOffset
		if p+chunk > offset+int64(wanted) {
			chunk = offset + int64(wanted) - p
		}

		if err := fs.dev.ReadBlock(chain[blockIndex], blockBuf); err != nil {
			return written, err
		}
		copy(blockBuf[intraOffset:intraOffset+chunk], buf[written:written+int(chunk)])
		if err := fs.dev.WriteBlock(chain[blockIndex], blockBuf); err != nil {
			return written, err
		}

		p += chunk
		written += int(chunk)
	}

	if int64(entry.Size) < offset+int64(written) {
		entry.Size = int32(offset + int64(written))
	}
	ts := now32()
	entry.ModTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)
	if err := fs.fat.Persist(fs.dev); err != nil {
		return written, err
	}
	return written, nil
}

// Truncate resizes the file to newSize, freeing or allocating blocks as
// needed. Shrinking to zero frees every block and resets the start block.
func (fs *FileSystem) Truncate(path string, newSize int64) error {
	name := stripLeadingSlash(path)
	slot, err := fs.fat.Lookup(name)
	if err != nil {
		return err
	}
	entry := fs.fat.Get(slot)

	if newSize == int64(entry.Size) {
		return nil
	}

	nOld := entry.BlockCount
	nNew := blockCount(newSize)

	switch {
	case nNew < nOld:
		if err := fs.truncateShrink(&entry, nOld, nNew); err != nil {
			return err
		}
	case nNew > nOld:
		if err := fs.truncateGrow(&entry, nOld, nNew); err != nil {
			return err
		}
	}

	entry.Size = int32(newSize)
	ts := now32()
	entry.ModTime = ts
	entry.ChangeTime = ts
	fs.fat.Set(slot, entry)
	return fs.fat.Persist(fs.dev)
}

func (fs *FileSystem) truncateShrink(entry *fat.Entry, nOld, nNew uint16) error {
	if entry.BlockCount == 0 {
		entry.BlockCount = nNew
		return nil
	}

	chain, err := fs.blt.ChainOf(uint32(entry.StartBlock), uint32(nOld))
	if err != nil {
		return err
	}

	if nNew == 0 {
		// Free every block and reset the start block rather than leaving an
		// undefined EOF write with no chain left.
		for _, b := range chain {
			fs.blt.SetFree(b)
		}
		entry.StartBlock = 0
	} else {
		fs.blt.SetEOF(chain[nNew-1])
		for i := int(nNew); i < len(chain); i++ {
			fs.blt.SetFree(chain[i])
		}
	}
	entry.BlockCount = nNew
	return fs.blt.Persist(fs.dev)
}

func (fs *FileSystem) truncateGrow(entry *fat.Entry, nOld, nNew uint16) error {
	var allocated []uint32
	var originalTail uint32
	restoreOriginalTail := false

	rollback := func() {
		for _, b := range allocated {
			fs.blt.SetFree(b)
		}
		if restoreOriginalTail {
			// The pre-existing chain's tail was re-pointed by the first
			// SetNext below; put it back to EOF so a healthy file's chain
			// is never left dangling by a grow that ran out of space.
			fs.blt.SetEOF(originalTail)
		}
	}

	tail := uint32(entry.StartBlock)
	if nOld == 0 {
		start, err := fs.blt.FindFree()
		if err != nil {
			return err
		}
		fs.blt.SetEOF(start)
		allocated = append(allocated, start)
		entry.StartBlock = uint16(start)
		tail = start
	} else {
		chain, err := fs.blt.ChainOf(uint32(entry.StartBlock), uint32(nOld))
		if err != nil {
			return err
		}
		tail = chain[len(chain)-1]
		originalTail = tail
		restoreOriginalTail = true
	}

	needed := int(nNew) - int(nOld)
	if nOld == 0 {
		needed--
	}

	for i := 0; i < needed; i++ {
		next, err := fs.blt.FindFree()
		if err != nil {
			// Roll back every block linked so far in this call, so a failed
			// grow never leaves a partially-linked chain.
			rollback()
			return err
		}
		fs.blt.SetNext(tail, next)
		fs.blt.SetEOF(next)
		allocated = append(allocated, next)
		tail = next
	}

	// Zero-fill every newly linked block on disk, so the container file
	// reaches it and a later read-modify-write never reads stale or
	// missing bytes.
	zero := make([]byte, block.Size)
	for _, b := range allocated {
		if err := fs.dev.WriteBlock(b, zero); err != nil {
			rollback()
			return err
		}
	}

	entry.BlockCount = nNew
	if err := fs.blt.Persist(fs.dev); err != nil {
		rollback()
		return err
	}
	return nil
}

// Release is a no-op: this implementation keeps no open-count bookkeeping.
func (fs *FileSystem) Release(path string) error {
	return nil
}

// Readdir lists the names of every file in the single root directory.
func (fs *FileSystem) Readdir(path string) ([]string, error) {
	if path != "/" {
		return nil, errors.ErrNotADirectory
	}

	entries := []string{".", ".."}
	for i := 0; i < fat.MaxFiles; i++ {
		entry := fs.fat.Get(i)
		if !entry.IsEmpty() {
			entries = append(entries, entry.Name)
		}
	}
	return entries, nil
}
