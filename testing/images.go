// Package testing provides helpers shared by this module's _test.go files
// for building in-memory backing stores, so block/fat/blt tests never touch
// the real filesystem.
package testing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/blkfs/blkfs/block"
)

// NewBackingStore returns a zero-filled in-memory stream sized for
// totalBlocks blocks of block.Size bytes each.
func NewBackingStore(t *testing.T, totalBlocks uint) io.ReadWriteSeeker {
	buf := make([]byte, totalBlocks*block.Size)
	stream := bytesextra.NewReadWriteSeeker(buf)
	require.NotNil(t, stream, "failed to allocate backing store")
	return stream
}
