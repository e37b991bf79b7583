package image_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/geometry"
	"github.com/123swk123/pyfat/image"
	"github.com/123swk123/pyfat/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func newStagingBuffer() (*bytesextra.ReadWriteSeeker, []byte) {
	profile := geometry.Lookup1440()
	raw := make([]byte, profile.ImageSizeBytes())
	return bytesextra.NewReadWriteSeeker(raw), raw
}

func TestOperationsRequireOpenState(t *testing.T) {
	img := image.New()

	err := img.AddDir("/SUBDIR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidState))

	err = img.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidState))
}

func TestCreateWhileOpenFailsAndClosedImageRejectsOperations(t *testing.T) {
	img := image.New()
	require.NoError(t, img.Create(1440))

	err := img.Create(1440)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidState))

	require.NoError(t, img.Close())

	err = img.AddDir("/SUBDIR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidState))
}

func TestCreateRejectsUnsupportedSize(t *testing.T) {
	img := image.New()
	err := img.Create(720)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.UnsupportedProfile))
}

func TestWriteThenOpenRoundTrip(t *testing.T) {
	img := image.New()
	require.NoError(t, img.Create(1440))

	content := bytes.Repeat([]byte("A"), 1500)
	require.NoError(t, img.AddFile("/HELLO.TXT", bytes.NewReader(content), uint32(len(content))))
	require.NoError(t, img.AddDir("/SUBDIR"))
	require.NoError(t, img.AddFile("/SUBDIR/NESTED.TXT", bytes.NewReader([]byte("nested")), 6))
	require.NoError(t, img.SetAttr("/HELLO.TXT", tree.ReadOnly))

	staging, _ := newStagingBuffer()
	require.NoError(t, img.Write(staging))

	_, err := staging.Seek(0, 0)
	require.NoError(t, err)

	reopened := image.New()
	require.NoError(t, reopened.Open(staging, 1440))

	var out bytes.Buffer
	require.NoError(t, reopened.Extract("/HELLO.TXT", &out))
	assert.Equal(t, content, out.Bytes())

	var nested bytes.Buffer
	require.NoError(t, reopened.Extract("/SUBDIR/NESTED.TXT", &nested))
	assert.Equal(t, "nested", nested.String())
}

func TestOpenRejectsMismatchedFatCopies(t *testing.T) {
	img := image.New()
	require.NoError(t, img.Create(1440))
	require.NoError(t, img.AddFile("/A.TXT", bytes.NewReader([]byte("a")), 1))

	staging, raw := newStagingBuffer()
	require.NoError(t, img.Write(staging))

	profile := geometry.Lookup1440()
	fat1Offset := int(profile.ReservedSectors) * int(profile.BytesPerSector)
	raw[fat1Offset] ^= 0xFF

	_, err := staging.Seek(0, 0)
	require.NoError(t, err)

	reopened := image.New()
	err = reopened.Open(staging, 1440)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.InvalidFormat))
}

func TestExtractRejectsDirectory(t *testing.T) {
	img := image.New()
	require.NoError(t, img.Create(1440))
	require.NoError(t, img.AddDir("/SUBDIR"))

	var out bytes.Buffer
	err := img.Extract("/SUBDIR", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NotAFile))
}

func TestRemoveFileThenWriteRoundTrip(t *testing.T) {
	img := image.New()
	require.NoError(t, img.Create(1440))
	require.NoError(t, img.AddFile("/A.TXT", bytes.NewReader([]byte("a")), 1))
	require.NoError(t, img.AddFile("/B.TXT", bytes.NewReader([]byte("bb")), 2))
	require.NoError(t, img.RemoveFile("/A.TXT"))

	staging, _ := newStagingBuffer()
	require.NoError(t, img.Write(staging))
	_, err := staging.Seek(0, 0)
	require.NoError(t, err)

	reopened := image.New()
	require.NoError(t, reopened.Open(staging, 1440))

	err = reopened.Extract("/A.TXT", &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NotFound))

	var out bytes.Buffer
	require.NoError(t, reopened.Extract("/B.TXT", &out))
	assert.Equal(t, "bb", out.String())
}
