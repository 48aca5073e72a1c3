package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the size of the RIFF/WAVE header produced by EncodeWAV:
// 12 bytes RIFF chunk + 24 bytes fmt chunk + 8 bytes data chunk header.
const wavHeaderSize = 44

// EncodeWAV encodes normalized float32 samples as a mono 16-bit PCM WAV
// byte buffer at the given sample rate. Out-of-range samples are clamped
// at encode time.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+int(dataSize)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize)) // file size - 8
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)

	for _, f := range samples {
		binary.Write(buf, binary.LittleEndian, Float32ToPcm16(f))
	}

	return buf.Bytes(), nil
}

// WriteWAVFile encodes samples with EncodeWAV and writes the result to path.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write WAV file: %w", err)
	}
	return nil
}
