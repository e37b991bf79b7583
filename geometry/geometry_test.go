package geometry_test

import (
	"testing"

	"github.com/123swk123/pyfat/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup1440(t *testing.T) {
	profile := geometry.Lookup1440()

	assert.EqualValues(t, 512, profile.BytesPerSector)
	assert.EqualValues(t, 14, profile.RootDirSectors())
	assert.EqualValues(t, 19, profile.FirstRootDirSector())
	assert.EqualValues(t, 33, profile.FirstDataSector())
	assert.True(t, profile.IsFAT12())
	assert.EqualValues(t, 1474560, profile.ImageSizeBytes())
	assert.EqualValues(t, 33, profile.PhysicalSectorForCluster(2))
	assert.EqualValues(t, 34, profile.PhysicalSectorForCluster(3))
}

func TestLookupUnknownSlug(t *testing.T) {
	_, err := geometry.Lookup("8in-ssdd")
	require.Error(t, err)
}
