package dirent_test

import (
	"testing"

	"github.com/123swk123/pyfat/dirent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEncodeDecodeRoundTrip(t *testing.T) {
	rec, err := dirent.NewFile("FOO", "TXT", 2, 4)
	require.NoError(t, err)

	raw := rec.Encode()
	require.Len(t, raw, dirent.Size)

	decoded, result, err := dirent.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, dirent.ScanOK, result)
	assert.Equal(t, rec, decoded)
	assert.Equal(t, "FOO.TXT", decoded.DisplayName())
	assert.False(t, decoded.IsDir())
}

func TestNameTooLong(t *testing.T) {
	_, err := dirent.NewFile("TOOLONGNAME", "TXT", 2, 0)
	require.Error(t, err)

	_, err = dirent.NewFile("FOO", "TOOLONG", 2, 0)
	require.Error(t, err)
}

func TestDotAndDotdot(t *testing.T) {
	dot := dirent.NewDot(5)
	dotdot := dirent.NewDotdot(0)

	assert.True(t, dot.IsDot())
	assert.False(t, dot.IsDotdot())
	assert.True(t, dotdot.IsDotdot())
	assert.False(t, dotdot.IsDot())
	assert.EqualValues(t, 5, dot.FirstCluster)
	assert.EqualValues(t, 0, dotdot.FirstCluster)
}

func TestDecodeEndAndDeletedSentinels(t *testing.T) {
	end := make([]byte, dirent.Size)
	_, result, err := dirent.Decode(end)
	require.NoError(t, err)
	assert.Equal(t, dirent.ScanEnd, result)

	deleted := make([]byte, dirent.Size)
	deleted[0] = 0xE5
	_, result, err = dirent.Decode(deleted)
	require.NoError(t, err)
	assert.Equal(t, dirent.ScanDeleted, result)
}

func TestAttributeFlips(t *testing.T) {
	rec, err := dirent.NewFile("FOO", "", 2, 4)
	require.NoError(t, err)

	rec.SetReadOnly()
	rec.SetHidden()
	rec.SetSystem()
	// Archive is already set by NewFile.
	assert.EqualValues(t, 0x27, rec.Attr)

	rec.ClearReadOnly()
	rec.ClearHidden()
	rec.ClearSystem()
	rec.ClearArchive()
	assert.EqualValues(t, 0x00, rec.Attr)
}
