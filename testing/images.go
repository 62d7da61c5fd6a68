// Package testing provides helpers for building backing images for package
// blockfs tests.
package testing

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// BlankImage returns a zero-filled in-memory stream of exactly
// totalBlocks*blockSize bytes, usable as a raw block-device stream. It never
// touches disk; blockfs.Format writes to a file path, not to this stream.
func BlankImage(t *testing.T, totalBlocks uint, blockSize uint16) io.ReadWriteSeeker {
	buf := make([]byte, totalBlocks*uint(blockSize))
	return bytesextra.NewReadWriteSeeker(buf)
}

// FormattedImageFile creates a temporary on-disk image file and formats it
// with formatFn (typically blockfs.Format), returning its path. blockfs.Engine
// mounts real files, not io.ReadWriteSeeker values, so tests that need a
// mounted Engine go through this rather than BlankImage.
func FormattedImageFile(t *testing.T, formatFn func(path string) error) string {
	f, err := os.CreateTemp(t.TempDir(), "blockfs-image-*")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())

	require.NoError(t, formatFn(path))
	return path
}
