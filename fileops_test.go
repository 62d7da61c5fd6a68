package blockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ft "github.com/IgorBoyarshin/blockfs/testing"
)

func TestOpenFileTableFullAndAlreadyOpen(t *testing.T) {
	// DefaultFanOut=10 only leaves room for 3 entries in root beyond "."
	// and ".." (F/2=5 pairs total); this test needs 5, so it formats its
	// own image with a wider fan-out instead of reusing mountedEngine.
	path := ft.FormattedImageFile(t, func(p string) error {
		return Format(p, 200, DefaultBlockSize, DefaultMaxDescriptors, 20)
	})
	e := NewEngine()
	require.NoError(t, e.Mount(path))
	t.Cleanup(func() { _ = e.Umount() })

	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)
	assert.Equal(t, 0, h)

	_, err = e.Open("/a")
	assert.ErrorIs(t, err, AlreadyOpen)

	require.NoError(t, e.Create("/b"))
	require.NoError(t, e.Create("/c"))
	require.NoError(t, e.Create("/d"))

	_, err = e.Open("/b")
	require.NoError(t, err)
	_, err = e.Open("/c")
	require.NoError(t, err)
	_, err = e.Open("/d")
	require.NoError(t, err)

	require.NoError(t, e.Create("/extra"))
	_, err = e.Open("/extra")
	assert.ErrorIs(t, err, TooManyOpen)
}

func TestCloseOnEmptySlotFails(t *testing.T) {
	e := mountedEngine(t)
	assert.ErrorIs(t, e.Close(0), BadHandle)
	assert.ErrorIs(t, e.Close(99), BadHandle)
}

func TestReadPastEndOfFileFails(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)
	require.NoError(t, e.Write(h, 0, []byte("hi")))

	_, err = e.Read(h, 0, 10)
	assert.ErrorIs(t, err, RangeError)
}

func TestWriteStartingPastEndOfFileFails(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)

	assert.ErrorIs(t, e.Write(h, 5, []byte("x")), RangeError)
}

func TestWriteBeyondMaxFileSizeFails(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)

	huge := make([]byte, int(DefaultFanOut)*int(DefaultBlockSize)+1)
	assert.ErrorIs(t, e.Write(h, 0, huge), RangeError)
}

func TestTruncateGrowZeroFillsThenShrinkFreesBlocks(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)
	require.NoError(t, e.Write(h, 0, []byte("0123456789ABCDE")))

	require.NoError(t, e.Truncate("/a", 20))
	data, err := e.Read(h, 15, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, data)

	require.NoError(t, e.Truncate("/a", 3))
	_, err = e.Read(h, 0, 4)
	assert.ErrorIs(t, err, RangeError)

	data, err = e.Read(h, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("012"), data)
}

func TestCreateOverTypeMismatchParent(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	assert.ErrorIs(t, e.Create("/a/b"), NotADirectory)
}

func TestMkdirRefusesExistingName(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Mkdir("/d"))
	assert.ErrorIs(t, e.Mkdir("/d"), AlreadyExists)
}

func TestUnlinkRefusesDirectory(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Mkdir("/d"))
	assert.ErrorIs(t, e.Unlink("/d"), TypeMismatch)
}

func TestLinkRefusesDirectory(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Mkdir("/d"))
	assert.ErrorIs(t, e.Link("/d", "/e"), TypeMismatch)
}

func TestCdOnRegularFileFails(t *testing.T) {
	e := mountedEngine(t)
	require.NoError(t, e.Create("/a"))
	assert.ErrorIs(t, e.Cd("/a"), TypeMismatch)
}

func TestDirectoryCapacityExhausted(t *testing.T) {
	e := mountedEngine(t)

	// DefaultFanOut=10 gives F/2=5 live pairs per directory; root already
	// holds "." and "..", leaving room for 3 more entries.
	require.NoError(t, e.Create("/a"))
	require.NoError(t, e.Create("/b"))
	require.NoError(t, e.Create("/c"))

	assert.ErrorIs(t, e.Create("/d"), DirFull)
}

func TestNameTooLongWarnsButStillCreatesEntry(t *testing.T) {
	e := mountedEngine(t)

	longName := "this-name-is-longer-than-one-block"
	err := e.Create("/" + longName)
	assert.ErrorIs(t, err, NameTooLong)

	// The stored entry is truncated to B=8 bytes; it's reachable under the
	// truncated name, not the one originally requested.
	truncated := longName[:int(DefaultBlockSize)]
	idx, err := e.resolveIndexForTest("/" + truncated)
	require.NoError(t, err)
	st, err := e.Filestat(idx)
	require.NoError(t, err)
	assert.Equal(t, TypeRegular, st.Type)
}

func TestMkdirBumpsAndRmdirRestoresParentLinkCount(t *testing.T) {
	e := mountedEngine(t)

	rootStat, err := e.Filestat(RootDescriptorIndex)
	require.NoError(t, err)
	baseline := rootStat.NumLinks

	require.NoError(t, e.Mkdir("/d"))
	rootStat, err = e.Filestat(RootDescriptorIndex)
	require.NoError(t, err)
	assert.Equal(t, baseline+1, rootStat.NumLinks)

	require.NoError(t, e.Rmdir("/d"))
	rootStat, err = e.Filestat(RootDescriptorIndex)
	require.NoError(t, err)
	assert.Equal(t, baseline, rootStat.NumLinks)
}
