package bootsector_test

import (
	"testing"

	"github.com/123swk123/pyfat/bootsector"
	"github.com/123swk123/pyfat/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultEmitParseRoundTrip(t *testing.T) {
	b := bootsector.NewDefault([448]byte{})
	raw := b.Emit()
	require.Len(t, raw, bootsector.Size)

	assert.Equal(t, byte(0x55), raw[510])
	assert.Equal(t, byte(0xAA), raw[511])

	parsed, err := bootsector.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, b, parsed)
}

func TestParseRejectsBadSignature(t *testing.T) {
	raw := bootsector.NewDefault([448]byte{}).Emit()
	raw[510] = 0
	raw[511] = 0

	_, err := bootsector.Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidFormat)
}

func TestParseRejectsWrongLength(t *testing.T) {
	_, err := bootsector.Parse(make([]byte, 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidFormat)
}

func TestParseCollectsEveryViolation(t *testing.T) {
	raw := bootsector.NewDefault([448]byte{}).Emit()
	raw[16] = 3    // num_fats, invalid
	raw[36] = 0x7F // drive_num, invalid

	_, err := bootsector.Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_fats")
	assert.Contains(t, err.Error(), "drive_num")
}
