// Package audio provides audio processing utilities shared by the VAD
// engine: PCM sample conversions, linear resampling, WAV byte layout,
// μ-law codec and a float32 ring buffer.
package audio

import (
	"encoding/binary"
	"math"
)

// Pcm16ToFloat32 converts a single 16-bit signed sample to float32.
// Divides by 32768 (not 32767) so that the full int16 range [-32768, 32767]
// maps to [-1.0, ~0.99997], keeping all values strictly within [-1, 1].
func Pcm16ToFloat32(s int16) float32 {
	return float32(s) / 32768.0
}

// Float32ToPcm16 converts a normalized float32 sample to 16-bit signed PCM.
// Values outside [-1, 1] are clamped before scaling.
func Float32ToPcm16(f float32) int16 {
	if f > 1.0 {
		f = 1.0
	} else if f < -1.0 {
		f = -1.0
	}
	return int16(math.Round(float64(f) * 32767.0))
}

// BytesToFloat32 converts 16-bit PCM (little-endian) bytes to normalized
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func BytesToFloat32(data []byte) []float32 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = Pcm16ToFloat32(v)
	}
	return samples
}

// Float32ToBytes converts normalized float32 samples to 16-bit PCM
// little-endian bytes, clamping out-of-range values.
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(Float32ToPcm16(f)))
	}
	return out
}
