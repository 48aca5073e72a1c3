package audio

import "fmt"

// Resample converts samples from one rate to another using linear
// interpolation. The output length is exactly ⌊len(input)·to/from⌋.
//
// This is a low-quality but fully deterministic conversion, intended for
// normalizing segment audio on the output path. It is not applied on the
// detector input path except as a best-effort coercion of input recorded
// at another rate (streaming input and the batch CLI).
func Resample(input []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 {
		return nil, fmt.Errorf("invalid input sample rate: %d", fromRate)
	}
	if toRate <= 0 {
		return nil, fmt.Errorf("invalid output sample rate: %d", toRate)
	}

	if fromRate == toRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}
	if len(input) == 0 {
		return nil, nil
	}

	outLen := len(input) * toRate / fromRate
	out := make([]float32, outLen)

	ratio := float64(fromRate) / float64(toRate)
	last := len(input) - 1
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		next := idx + 1
		if next > last {
			next = last
		}
		out[i] = input[idx]*(1-frac) + input[next]*frac
	}

	return out, nil
}
