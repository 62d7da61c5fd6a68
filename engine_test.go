package blockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ft "github.com/IgorBoyarshin/blockfs/testing"
)

func mountedEngine(t *testing.T) *Engine {
	path := ft.FormattedImageFile(t, func(p string) error {
		return Format(p, DefaultTotalBlocks, DefaultBlockSize, DefaultMaxDescriptors, DefaultFanOut)
	})

	e := NewEngine()
	require.NoError(t, e.Mount(path))
	t.Cleanup(func() { _ = e.Umount() })
	return e
}

func TestFormatThenMountThenUmountThenMountRoundTrip(t *testing.T) {
	path := ft.FormattedImageFile(t, func(p string) error {
		return Format(p, DefaultTotalBlocks, DefaultBlockSize, DefaultMaxDescriptors, DefaultFanOut)
	})

	e := NewEngine()
	require.NoError(t, e.Mount(path))
	entries, err := e.Ls()
	require.NoError(t, err)
	assert.ElementsMatch(t, []DirEntry{{Name: ".", Index: RootDescriptorIndex}, {Name: "..", Index: RootDescriptorIndex}}, entries)
	require.NoError(t, e.Umount())

	require.NoError(t, e.Mount(path))
	entries, err = e.Ls()
	require.NoError(t, err)
	assert.ElementsMatch(t, []DirEntry{{Name: ".", Index: RootDescriptorIndex}, {Name: "..", Index: RootDescriptorIndex}}, entries)
	require.NoError(t, e.Umount())
}

func TestMountTwiceFails(t *testing.T) {
	e := mountedEngine(t)
	assert.ErrorIs(t, e.Mount("irrelevant"), AlreadyMounted)
}

func TestOperationBeforeMountFails(t *testing.T) {
	e := NewEngine()
	assert.ErrorIs(t, e.Create("/a"), NotMounted)
}

// scenario 1: create + write + read
func TestCreateWriteReadRoundTrip(t *testing.T) {
	e := mountedEngine(t)

	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)
	assert.Equal(t, 0, h)

	require.NoError(t, e.Write(h, 0, []byte("hello")))
	require.NoError(t, e.Close(h))

	h2, err := e.Open("/a")
	require.NoError(t, err)
	assert.Equal(t, 0, h2)

	data, err := e.Read(h2, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	idx, err := e.resolveIndexForTest("/a")
	require.NoError(t, err)
	st, err := e.Filestat(idx)
	require.NoError(t, err)
	assert.Equal(t, TypeRegular, st.Type)
	assert.EqualValues(t, 5, st.Size)
	assert.EqualValues(t, 1, st.NumLinks)
}

// scenario 2: hard-link semantics
func TestHardLinkSemantics(t *testing.T) {
	e := mountedEngine(t)

	require.NoError(t, e.Create("/a"))
	require.NoError(t, e.Link("/a", "/b"))

	idx, err := e.resolveIndexForTest("/a")
	require.NoError(t, err)
	st, err := e.Filestat(idx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.NumLinks)

	require.NoError(t, e.Unlink("/a"))
	st, err = e.Filestat(idx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.NumLinks)

	require.NoError(t, e.Unlink("/b"))
	st, err = e.Filestat(idx)
	require.NoError(t, err)
	assert.Equal(t, TypeEmpty, st.Type)
}

// scenario 3: symlink hop limit. Needs 6 root entries (x, s1..s5), more
// than DefaultFanOut's 3 free slots, so this formats its own wider image.
func TestSymlinkHopLimit(t *testing.T) {
	path := ft.FormattedImageFile(t, func(p string) error {
		return Format(p, 200, DefaultBlockSize, DefaultMaxDescriptors, 20)
	})
	e := NewEngine()
	require.NoError(t, e.Mount(path))
	t.Cleanup(func() { _ = e.Umount() })

	require.NoError(t, e.Create("/x"))
	require.NoError(t, e.Symlink("/x", "s1"))
	require.NoError(t, e.Symlink("/s1", "s2"))
	require.NoError(t, e.Symlink("/s2", "s3"))
	require.NoError(t, e.Symlink("/s3", "s4"))
	require.NoError(t, e.Symlink("/s4", "s5"))

	_, err := e.Open("/s5")
	assert.ErrorIs(t, err, SymlinkLoop)
}

// scenario 4: rmdir on non-empty
func TestRmdirRefusesNonEmptyThenSucceedsAfterEmptying(t *testing.T) {
	e := mountedEngine(t)

	require.NoError(t, e.Mkdir("/d"))
	require.NoError(t, e.Create("/d/f"))

	assert.ErrorIs(t, e.Rmdir("/d"), NotEmpty)

	require.NoError(t, e.Unlink("/d/f"))
	require.NoError(t, e.Rmdir("/d"))
}

// scenario 5: write extends file across a block boundary
func TestWriteAcrossBlockBoundary(t *testing.T) {
	e := mountedEngine(t)

	require.NoError(t, e.Create("/a"))
	h, err := e.Open("/a")
	require.NoError(t, err)

	payload := []byte("0123456789ABCDE") // 15 bytes, B=8 -> 2 blocks
	require.NoError(t, e.Write(h, 0, payload))

	idx, err := e.resolveIndexForTest("/a")
	require.NoError(t, err)
	st, err := e.Filestat(idx)
	require.NoError(t, err)
	assert.EqualValues(t, 15, st.Size)
	assert.Equal(t, 2, st.NumBlocks)

	got, err := e.Read(h, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("789AB"), got)
}

// scenario 6: bitmap saturation. Uses a geometry with a roomy directory
// (F=30, 15 pairs) but a tiny data area (8 blocks), so the bitmap — not
// root's own entry capacity — is the binding constraint.
func TestBitmapSaturationThenFreedByUnlink(t *testing.T) {
	path := ft.FormattedImageFile(t, func(p string) error {
		return Format(p, 410, 8, 50, 30)
	})
	e := NewEngine()
	require.NoError(t, e.Mount(path))
	t.Cleanup(func() { _ = e.Umount() })

	i := 0
	var lastErr error
	for {
		name := string(rune('a' + i))
		if err := e.Create("/" + name); err != nil {
			lastErr = err
			break
		}
		i++
		require.Less(t, i, 1000, "saturation never occurred")
	}
	assert.ErrorIs(t, lastErr, NoFreeBlock)
	require.Greater(t, i, 0, "at least one file should fit before saturation")

	require.NoError(t, e.Unlink("/a"))
	require.NoError(t, e.Create("/retry"))
}

// resolveIndexForTest exposes resolveToIndex to tests without making it part
// of the public contract.
func (e *Engine) resolveIndexForTest(path string) (uint32, error) {
	img, err := e.requireMounted()
	if err != nil {
		return 0, err
	}
	return img.resolveToIndex(path)
}
