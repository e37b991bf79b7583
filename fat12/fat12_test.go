package fat12_test

import (
	"testing"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/fat12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSentinels(t *testing.T) {
	table := fat12.New()
	assert.Equal(t, fat12.MediaDescriptorEntry, table.EntryAt(0))
	assert.Equal(t, fat12.EndOfChain, table.EntryAt(1))
}

func TestEmitParseRoundTrip(t *testing.T) {
	table := fat12.New()
	first, err := table.Allocate(1500) // 3 clusters
	require.NoError(t, err)
	assert.EqualValues(t, 2, first)

	raw := table.Emit()
	require.Len(t, raw, fat12.Size)
	assert.Equal(t, []byte{0xF0, 0xFF, 0xFF}, raw[0:3])

	parsed, err := fat12.Parse(raw)
	require.NoError(t, err)
	for i := uint(0); i < fat12.Entries; i++ {
		assert.Equal(t, table.EntryAt(i), parsed.EntryAt(i), "entry %d mismatch", i)
	}
}

func TestAllocateIsAscendingAndChains(t *testing.T) {
	table := fat12.New()
	first, err := table.Allocate(1025) // needs 3 clusters
	require.NoError(t, err)
	assert.EqualValues(t, 2, first)

	assert.EqualValues(t, 3, table.EntryAt(2))
	assert.EqualValues(t, 4, table.EntryAt(3))
	assert.Equal(t, fat12.EndOfChain, table.EntryAt(4))

	sectors, err := table.Chain(first)
	require.NoError(t, err)
	assert.Equal(t, []uint{33, 34, 35}, sectors)
}

func TestAllocateZeroLength(t *testing.T) {
	table := fat12.New()
	first, err := table.Allocate(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, first)
}

func TestAllocateNoSpaceLeavesTableUnchanged(t *testing.T) {
	table := fat12.New()
	before := table.Emit()

	_, err := table.Allocate(uint(fat12.Entries) * 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NoSpace)

	after := table.Emit()
	assert.Equal(t, before, after)
}

func TestExtendAddsOneCluster(t *testing.T) {
	table := fat12.New()
	first, err := table.Allocate(512)
	require.NoError(t, err)

	require.NoError(t, table.Extend(first))

	length, err := table.ChainLength(first)
	require.NoError(t, err)
	assert.Equal(t, 2, length)
}

func TestFreeZeroesEveryClusterInChain(t *testing.T) {
	table := fat12.New()
	first, err := table.Allocate(1200) // 3 clusters: 2,3,4
	require.NoError(t, err)

	require.NoError(t, table.Free(first))
	for _, c := range []uint{2, 3, 4} {
		assert.EqualValues(t, 0, table.EntryAt(c))
	}

	// The freed clusters are usable again, starting from the lowest index.
	second, err := table.Allocate(512)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second)
}

func TestChainRejectsOutOfRangeStart(t *testing.T) {
	table := fat12.New()
	_, err := table.Chain(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidFormat)

	_, err = table.Chain(fat12.Entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidFormat)
}
