package audio

import (
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAVFile decodes a mono WAV file into normalized float32 samples and
// returns them with the file's sample rate. Multi-channel files are
// rejected.
func ReadWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV file: %w", err)
	}
	if buf.Format.NumChannels != 1 {
		return nil, 0, fmt.Errorf("expected mono audio, got %d channels", buf.Format.NumChannels)
	}

	return pcmBufferToFloat32(buf), buf.Format.SampleRate, nil
}

// pcmBufferToFloat32 normalizes a decoded PCM buffer by its source bit
// depth.
func pcmBufferToFloat32(buf *gaudio.IntBuffer) []float32 {
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples
}
