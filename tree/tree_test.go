package tree_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/fat12"
	"github.com/123swk123/pyfat/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(content string) *bytes.Reader {
	return bytes.NewReader([]byte(content))
}

func TestAddFileAndLookup(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddFile("/HELLO.TXT", newSource("hello"), 5))

	idx, err := tr.Lookup("/HELLO.TXT")
	require.NoError(t, err)
	assert.Equal(t, "HELLO.TXT", tr.Node(idx).Record.DisplayName())
	assert.False(t, tr.Node(idx).Record.IsDir())
}

func TestAddDirCreatesDotAndDotdot(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddDir("/SUBDIR"))

	idx, err := tr.Lookup("/SUBDIR")
	require.NoError(t, err)
	node := tr.Node(idx)
	assert.True(t, node.Record.IsDir())
	require.Len(t, node.Children, 2)
	assert.True(t, tr.Node(node.Children[0]).Record.IsDot())
	assert.True(t, tr.Node(node.Children[1]).Record.IsDotdot())
	assert.EqualValues(t, node.Record.FirstCluster, tr.Node(node.Children[0]).Record.FirstCluster)
	assert.EqualValues(t, 0, tr.Node(node.Children[1]).Record.FirstCluster)
}

func TestAddFileUnderSubdirectory(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddDir("/SUBDIR"))
	require.NoError(t, tr.AddFile("/SUBDIR/A.TXT", newSource("a"), 1))

	idx, err := tr.Lookup("/SUBDIR/A.TXT")
	require.NoError(t, err)
	assert.Equal(t, "A.TXT", tr.Node(idx).Record.DisplayName())
}

func TestLookupMissingReturnsNotFound(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	_, err := tr.Lookup("/NOPE.TXT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NotFound))
}

func TestLookupThroughFileComponentIsNotADirectory(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddFile("/A.TXT", newSource("a"), 1))
	_, err := tr.Lookup("/A.TXT/B.TXT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NotADirectory))
}

func TestRemoveFileFreesItsChain(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddFile("/A.TXT", newSource("aaaa"), 1500))
	idx, err := tr.Lookup("/A.TXT")
	require.NoError(t, err)
	first := uint(tr.Node(idx).Record.FirstCluster)

	require.NoError(t, tr.RemoveFile("/A.TXT"))
	_, err = tr.Lookup("/A.TXT")
	require.Error(t, err)

	// The freed chain's first cluster is available again.
	assert.EqualValues(t, 0, fat.EntryAt(first))
}

func TestRemoveDirRejectsNonEmpty(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddDir("/SUBDIR"))
	require.NoError(t, tr.AddFile("/SUBDIR/A.TXT", newSource("a"), 1))

	err := tr.RemoveDir("/SUBDIR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.DirectoryNotEmpty))
}

func TestRemoveDirSucceedsWhenOnlyDotEntriesRemain(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddDir("/SUBDIR"))
	require.NoError(t, tr.RemoveDir("/SUBDIR"))

	_, err := tr.Lookup("/SUBDIR")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NotFound))
}

func TestRemoveRootIsRejected(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	err := tr.RemoveDir("/")
	require.Error(t, err)
}

func TestRootCapacityExceeded(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	for i := 0; i < 224; i++ {
		name := fmt.Sprintf("F%d", i)
		// Keep within the 8-character limit.
		if len(name) > 8 {
			t.Fatalf("generated name too long: %s", name)
		}
		require.NoError(t, tr.AddFile("/"+name, newSource("x"), 1))
	}

	err := tr.AddFile("/OVERFLOW", newSource("x"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.RootCapacityExceeded))
}

// TestSubdirectoryGrowsAcrossClusters checks that adding enough entries to
// a subdirectory to overflow its first cluster extends its chain by one,
// since 16 records exactly fill one 512-byte cluster.
func TestSubdirectoryGrowsAcrossClusters(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddDir("/SUBDIR"))
	idx, err := tr.Lookup("/SUBDIR")
	require.NoError(t, err)
	firstCluster := uint(tr.Node(idx).Record.FirstCluster)

	length, err := fat.ChainLength(firstCluster)
	require.NoError(t, err)
	assert.Equal(t, 1, length)

	for i := 0; i < 17; i++ {
		name := fmt.Sprintf("N%d", i)
		require.NoError(t, tr.AddFile(fmt.Sprintf("/SUBDIR/%s.TXT", name), newSource("x"), 1))
	}

	// . and .. already occupy 2 of the 16 slots in the first cluster, so
	// the 15th file pushes the record count to 17 and must trigger growth.
	length, err = fat.ChainLength(firstCluster)
	require.NoError(t, err)
	assert.Equal(t, 2, length)
}

func TestSetAndClearAttrThroughTree(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	require.NoError(t, tr.AddFile("/A.TXT", newSource("a"), 1))
	require.NoError(t, tr.SetAttr("/A.TXT", tree.ReadOnly))
	require.NoError(t, tr.SetAttr("/A.TXT", tree.Hidden))

	idx, err := tr.Lookup("/A.TXT")
	require.NoError(t, err)
	assert.NotZero(t, tr.Node(idx).Record.Attr&0x01)
	assert.NotZero(t, tr.Node(idx).Record.Attr&0x02)

	require.NoError(t, tr.ClearAttr("/A.TXT", tree.ReadOnly))
	require.NoError(t, tr.ClearAttr("/A.TXT", tree.Hidden))
	assert.Zero(t, tr.Node(idx).Record.Attr&0x01)
	assert.Zero(t, tr.Node(idx).Record.Attr&0x02)
}

func TestAddFileNameTooLongLeavesFatUnchanged(t *testing.T) {
	fat := fat12.New()
	tr := tree.New(fat)

	before := fat.Emit()
	err := tr.AddFile("/WAYTOOLONGNAME.TXT", newSource("x"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NameTooLong))
	assert.Equal(t, before, fat.Emit())
}
