package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/blt"
)

// TestTruncateGrowRollsBackDanglingTailOnExhaustion drives the BLT down to
// exactly one free block, then grows a file that already has a one-block
// chain by two blocks. The first link succeeds and re-points the existing
// chain's tail; the second FindFree call runs out of space. The pre-existing
// block must come back from this as EOF, not as a dangling pointer into a
// block that rollback just freed.
func TestTruncateGrowRollsBackDanglingTailOnExhaustion(t *testing.T) {
	dir := t.TempDir()
	fs := New(filepath.Join(dir, "container.img"), nil)
	require.NoError(t, fs.Init())
	defer fs.Destroy()

	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	content := []byte("hello")
	_, err := fs.Write("/a", content, 0)
	require.NoError(t, err)

	name := stripLeadingSlash("/a")
	slot, err := fs.fat.Lookup(name)
	require.NoError(t, err)
	entry := fs.fat.Get(slot)
	require.EqualValues(t, 1, entry.BlockCount)
	originalStart := entry.StartBlock

	// Occupy every data block except one, without going through FindFree
	// (which would mean an O(n^2) scan to fill a 65536-block volume).
	lastFreeBlock := uint32(blt.TotalBlocks - 1)
	for b := uint32(DataStart); b < blt.TotalBlocks; b++ {
		if b == uint32(originalStart) || b == lastFreeBlock {
			continue
		}
		fs.blt.SetEOF(b)
	}

	err = fs.Truncate("/a", 3*512)
	assert.Error(t, err)

	// The chain must still read back as a healthy one-block file: the
	// rollback must have restored the original tail to EOF, not left it
	// pointing at the block that was freed again after the failed grow.
	attr, err := fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, attr.BlockCount)
	assert.EqualValues(t, len(content), attr.Size)

	buf := make([]byte, len(content))
	n, err := fs.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(content), n)
	assert.Equal(t, content, buf)

	require.NoError(t, fs.Unlink("/a"))
}
