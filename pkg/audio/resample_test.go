package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Must be a copy, not an alias.
	out[0] = 9
	assert.Equal(t, float32(0.1), in[0])
}

func TestResampleLengthFormula(t *testing.T) {
	tests := []struct {
		name     string
		inLen    int
		from, to int
	}{
		{"upsample 8k to 16k", 1000, 8000, 16000},
		{"downsample 16k to 8k", 1000, 16000, 8000},
		{"16k to 24k", 512, 16000, 24000},
		{"44.1k to 16k", 4410, 44100, 16000},
		{"odd lengths", 333, 22050, 16000},
		{"single sample", 1, 8000, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.inLen)
			out, err := Resample(in, tt.from, tt.to)
			require.NoError(t, err)
			assert.Len(t, out, tt.inLen*tt.to/tt.from)
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate of a ramp should land midpoints between samples.
	in := []float32{0, 1, 2, 3}
	out, err := Resample(in, 8000, 16000)
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Equal(t, float32(0), out[0])
	assert.InDelta(t, 0.5, out[1], 1e-6)
	assert.InDelta(t, 1.0, out[2], 1e-6)
	assert.InDelta(t, 2.5, out[5], 1e-6)
}

func TestResampleInvalidRates(t *testing.T) {
	_, err := Resample([]float32{0}, 0, 16000)
	assert.Error(t, err)
	_, err = Resample([]float32{0}, 16000, -1)
	assert.Error(t, err)
}

func TestResampleEmptyInput(t *testing.T) {
	out, err := Resample(nil, 8000, 16000)
	require.NoError(t, err)
	assert.Empty(t, out)
}
