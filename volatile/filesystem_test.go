package volatile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/volatile"
)

func TestCreateWriteRead(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/a", 0644, 1, 1))

	n, err := fs.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestReadPastEndIsInvalid(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	_, err := fs.Write("/a", []byte("hi"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	_, err = fs.Read("/a", buf, 100)
	assert.Error(t, err)
}

func TestRenameReplaces(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/x", 0644, 1, 1))
	_, err := fs.Write("/x", []byte("XX"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Create("/y", 0644, 1, 1))

	require.NoError(t, fs.Rename("/x", "/y"))

	buf := make([]byte, 2)
	n, err := fs.Read("/y", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = fs.Getattr("/x")
	assert.Error(t, err)
}

func TestTruncateShrinkAndGrow(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	_, err := fs.Write("/a", []byte("hello world"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/a", 5))
	attr, err := fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 5, attr.Size)

	require.NoError(t, fs.Truncate("/a", 20))
	attr, err = fs.Getattr("/a")
	require.NoError(t, err)
	assert.EqualValues(t, 20, attr.Size)
}

func TestReaddirListsFiles(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	require.NoError(t, fs.Create("/b", 0644, 1, 1))

	entries, err := fs.Readdir("/")
	require.NoError(t, err)
	assert.Contains(t, entries, "a")
	assert.Contains(t, entries, "b")

	_, err = fs.Readdir("/a")
	assert.Error(t, err)
}

func TestUnlinkThenGetattrFails(t *testing.T) {
	fs := volatile.New()
	require.NoError(t, fs.Create("/a", 0644, 1, 1))
	require.NoError(t, fs.Unlink("/a"))

	_, err := fs.Getattr("/a")
	assert.Error(t, err)
}
