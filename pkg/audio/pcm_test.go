package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPcm16RoundTrip(t *testing.T) {
	// Round-trip error for values in [-1, 1) stays within one quantization
	// step.
	for _, f := range []float32{-1.0, -0.5, -0.001, 0, 0.001, 0.25, 0.5, 0.999} {
		got := Pcm16ToFloat32(Float32ToPcm16(f))
		assert.InDelta(t, f, got, 1.0/32768.0, "value %v", f)
	}
}

func TestFloat32ToPcm16Clamps(t *testing.T) {
	assert.Equal(t, int16(32767), Float32ToPcm16(1.5))
	assert.Equal(t, int16(-32767), Float32ToPcm16(-1.5))
	assert.Equal(t, int16(32767), Float32ToPcm16(1.0))
}

func TestPcm16ToFloat32Range(t *testing.T) {
	assert.Equal(t, float32(-1.0), Pcm16ToFloat32(math.MinInt16))
	assert.Less(t, Pcm16ToFloat32(math.MaxInt16), float32(1.0))
	assert.Equal(t, float32(0), Pcm16ToFloat32(0))
}

func TestBytesToFloat32(t *testing.T) {
	// 0x0000 = 0, 0x4000 = 16384 -> 0.5, 0xC000 = -16384 -> -0.5
	data := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0}
	samples := BytesToFloat32(data)
	require.Len(t, samples, 3)
	assert.Equal(t, float32(0), samples[0])
	assert.Equal(t, float32(0.5), samples[1])
	assert.Equal(t, float32(-0.5), samples[2])
}

func TestBytesToFloat32OddTail(t *testing.T) {
	samples := BytesToFloat32([]byte{0x00, 0x40, 0x7F})
	require.Len(t, samples, 1)
	assert.Nil(t, BytesToFloat32([]byte{0x7F}))
}

func TestFloat32ToBytesRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.75}
	out := BytesToFloat32(Float32ToBytes(in))
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1.0/32768.0)
	}
}
