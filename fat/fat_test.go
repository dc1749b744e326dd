package fat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/block"
	"github.com/blkfs/blkfs/fat"
	blkfstesting "github.com/blkfs/blkfs/testing"
)

func TestAllocateAndLookup(t *testing.T) {
	table := fat.New()

	slot, err := table.Allocate()
	require.NoError(t, err)
	table.Set(slot, fat.Entry{Name: "hello.txt", Mode: 0644})

	found, err := table.Lookup("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, slot, found)

	_, err = table.Lookup("missing.txt")
	assert.Error(t, err)
}

func TestFullTableReturnsNoSpace(t *testing.T) {
	table := fat.New()
	for i := 0; i < fat.MaxFiles; i++ {
		slot, err := table.Allocate()
		require.NoError(t, err)
		table.Set(slot, fat.Entry{Name: "file"})
	}

	_, err := table.Allocate()
	assert.Error(t, err)
}

func TestClearRestoresEmptyNormalForm(t *testing.T) {
	table := fat.New()
	slot, err := table.Allocate()
	require.NoError(t, err)
	table.Set(slot, fat.Entry{Name: "a", Size: 5, BlockCount: 1})

	table.Clear(slot)
	assert.True(t, table.Get(slot).IsEmpty())
	_, err = table.Lookup("a")
	assert.Error(t, err)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	stream := blkfstesting.NewBackingStore(t, fat.Blocks)
	dev := block.NewFromStream(stream)

	table := fat.New()
	table.Set(3, fat.Entry{
		Name:       "data.bin",
		UID:        1000,
		GID:        1000,
		Mode:       0100644,
		AccessTime: 111,
		ModTime:    222,
		ChangeTime: 333,
		StartBlock: 264,
		BlockCount: 2,
		Size:       900,
	})
	require.NoError(t, table.Persist(dev))

	loaded, err := fat.Load(dev)
	require.NoError(t, err)
	assert.Equal(t, table.Get(3), loaded.Get(3))
	assert.True(t, loaded.Get(0).IsEmpty())
}
