package core_test

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/core"
)

func newFS(t *testing.T) (*core.FileSystem, string) {
	dir := t.TempDir()
	containerPath := filepath.Join(dir, "container.img")
	fs := core.New(containerPath, nil)
	require.NoError(t, fs.Init())
	return fs, containerPath
}

func TestCreateWriteRead(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	n, err := fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	attr, err := fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 5, attr.Size)
	assert.EqualValues(t, 1, attr.BlockCount)
}

func TestCrossBlockWrite(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/b", 0644, 1, 1))
	data := make([]byte, 600)
	for i := range data {
		data[i] = 0xAB
	}
	n, err := fs.Write("/b", data, 0)
	require.NoError(t, err)
	assert.Equal(t, 600, n)

	attr, err := fs.Getattr("/b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, attr.BlockCount)

	buf := make([]byte, 600)
	n, err = fs.Read("/b", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, data, buf)
}

func TestShrinkTruncateFreesBlocks(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/b", 0644, 1, 1))
	data := make([]byte, 600)
	_, err := fs.Write("/b", data, 0)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/b", 100))

	attr, err := fs.Getattr("/b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, attr.BlockCount)
	assert.EqualValues(t, 100, attr.Size)
}

func TestRenameReplaces(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/x", 0644, 1, 1))
	_, err := fs.Write("/x", []byte("XX"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Create("/y", 0644, 1, 1))
	_, err = fs.Write("/y", []byte("YYYY"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Rename("/x", "/y"))

	buf := make([]byte, 4)
	n, err := fs.Read("/y", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "XX", string(buf[:2]))

	_, err = fs.Getattr("/x")
	assert.Error(t, err)
}

func TestPersistenceAcrossRemount(t *testing.T) {
	fs, containerPath := newFS(t)
	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	_, err := fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Destroy())

	fs2 := core.New(containerPath, nil)
	require.NoError(t, fs2.Init())
	defer fs2.Destroy()

	buf := make([]byte, 5)
	n, err := fs2.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestNoSpaceOnFullFAT(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	for i := 0; i < 64; i++ {
		require.NoError(t, fs.Create("/f"+strconv.Itoa(i), 0644, 1, 1))
	}
	err := fs.Create("/f64", 0644, 1, 1)
	assert.Error(t, err)
}

func TestNameLengthBoundary(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	name32 := "/" + repeat("a", 32)
	require.NoError(t, fs.Create(name32, 0644, 1, 1))

	name33 := "/" + repeat("a", 33)
	err := fs.Create(name33, 0644, 1, 1)
	assert.Error(t, err)
}

func TestReadPastEndIsShortRead(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	_, err := fs.Write("/a", []byte("hi"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := fs.Read("/a", buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTruncateToZeroThenGrowRebuildsChain(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	_, err := fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/a", 0))
	attr, err := fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 0, attr.BlockCount)

	require.NoError(t, fs.Truncate("/a", 10))
	attr, err = fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, attr.BlockCount)
}

func TestReaddirListsFiles(t *testing.T) {
	fs, _ := newFS(t)
	defer fs.Destroy()

	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	require.NoError(t, fs.Create("/b", 0644, 1, 1))

	entries, err := fs.Readdir("/")
	require.NoError(t, err)
	assert.Contains(t, entries, ".")
	assert.Contains(t, entries, "..")
	assert.Contains(t, entries, "a")
	assert.Contains(t, entries, "b")

	_, err = fs.Readdir("/a")
	assert.Error(t, err)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
