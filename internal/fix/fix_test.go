package fix

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func littleEndianFor(t *testing.T) binary.ByteOrder {
	t.Helper()
	return binary.LittleEndian
}

func bigEndianFor(t *testing.T) binary.ByteOrder {
	t.Helper()
	return binary.BigEndian
}

func TestWireSizeByFixType(t *testing.T) {
	sizes := map[int]int{0: 12, 1: 16, 2: 20, 3: 24, 4: 60}
	for ft, want := range sizes {
		got, err := WireSize(ft)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := WireSize(5)
	assert.Error(t, err)
}

func TestDecodeValidFixType0(t *testing.T) {
	raw := make([]byte, 12)
	raw[1], raw[2], raw[3] = 12, 34, 56
	order := littleEndianFor(t)
	order.PutUint32(raw[4:8], math.Float32bits(0.6))
	order.PutUint32(raw[8:12], math.Float32bits(-0.3))

	f, err := Decode(raw, 0, false)
	require.NoError(t, err)
	assert.False(t, f.Suspect)
	assert.Equal(t, 12, f.Hour)
	assert.InDelta(t, 0.6, f.LatitudeRad, 1e-6)
	assert.Nil(t, f.Altitude)
}

func TestDecodeMarksSuspectOnBadTime(t *testing.T) {
	raw := make([]byte, 12)
	raw[1] = 25 // invalid hour
	f, err := Decode(raw, 0, false)
	require.NoError(t, err)
	assert.True(t, f.Suspect)
}

func TestDecodeMarksSuspectOnNaN(t *testing.T) {
	raw := make([]byte, 12)
	order := littleEndianFor(t)
	order.PutUint32(raw[4:8], math.Float32bits(float32(math.NaN())))

	f, err := Decode(raw, 0, false)
	require.NoError(t, err)
	assert.True(t, f.Suspect)
}

func TestDecodeEncodeRoundTripLittleEndian(t *testing.T) {
	raw := make([]byte, 24)
	raw[1], raw[2], raw[3] = 1, 2, 3
	order := littleEndianFor(t)
	order.PutUint32(raw[4:8], math.Float32bits(0.1))
	order.PutUint32(raw[8:12], math.Float32bits(-0.2))
	order.PutUint32(raw[12:16], math.Float32bits(123.4))
	order.PutUint32(raw[16:20], math.Float32bits(5.5))
	order.PutUint32(raw[20:24], 9999)

	f, err := Decode(raw, 3, false)
	require.NoError(t, err)
	require.False(t, f.Suspect)

	back, err := Encode(f, false)
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}

func TestDecodeEncodeRoundTripBigEndian(t *testing.T) {
	raw := make([]byte, 12)
	raw[1], raw[2], raw[3] = 4, 5, 6
	order := bigEndianFor(t)
	order.PutUint32(raw[4:8], math.Float32bits(0.25))
	order.PutUint32(raw[8:12], math.Float32bits(-0.1))

	f, err := Decode(raw, 0, true)
	require.NoError(t, err)

	back, err := Encode(f, true)
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}

func TestPermissiveLatitudeRangeAllowsUpTo2Pi(t *testing.T) {
	raw := make([]byte, 12)
	order := littleEndianFor(t)
	order.PutUint32(raw[4:8], math.Float32bits(float32(1.9*math.Pi)))

	f, err := Decode(raw, 0, false)
	require.NoError(t, err)
	assert.False(t, f.Suspect)
}
