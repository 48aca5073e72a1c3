package vad

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jims57/silero-vad/pkg/audio"
)

// minSpeechWindows is the number of consecutive speech windows required
// before a streaming segment opens.
const minSpeechWindows = 2

// StreamConfig configures a StreamSegmenter.
type StreamConfig struct {
	// OutputDir receives one segment_<N>.wav per emitted segment.
	OutputDir string

	// OutputSampleRate is the rate of the written WAV files. Zero keeps
	// the detector's input rate; any other value resamples on emission.
	OutputSampleRate int
}

// StreamSegmenter consumes variable-sized chunks through a borrowed
// Detector and extracts speech segments as WAV files.
//
// It does not reuse the batch hysteresis machine: it keeps debounced
// consecutive-window counters to guard against single-frame spikes, and
// backdates the speech start to the first of the agreeing windows. The
// boundaries therefore differ slightly from a batch pass over the same
// audio: a segment opens only after two agreeing windows, closes after
// minSilenceWindows of disagreement, and is padded and peak-normalized on
// emission while batch segments are not.
//
// The stream borrows the detector; dropping the detector invalidates the
// stream. Like the detector, a StreamSegmenter must be used from one
// goroutine at a time.
type StreamSegmenter struct {
	id  string
	det *Detector
	cfg Config

	outputDir  string
	outputRate int

	// accumulated holds every sample ever pushed, so emission can slice
	// padded segment audio by absolute sample index. It is kept whole for
	// the life of the stream (no compaction); long sessions should bound
	// their own lifetime.
	accumulated []float32
	// pending is the partial-window tail held back until the next chunk.
	pending []float32

	totalSamplesProcessed uint64
	segmentCounter        uint32

	inSpeech          bool
	speechStartSample uint64
	speechEndSample   uint64
	consecSpeech      uint32
	consecSilence     uint32

	probSum      float64
	speechFrames uint32

	segments []Segment

	minSilenceWindows uint32
}

// NewStreamSegmenter creates a streaming segmenter over det, resetting it
// so the sample clock starts at zero. The output directory is created if
// missing.
func NewStreamSegmenter(det *Detector, cfg StreamConfig) (*StreamSegmenter, error) {
	if det == nil {
		return nil, fmt.Errorf("invalid nil detector")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	dcfg := det.Config()
	outputRate := cfg.OutputSampleRate
	if outputRate == 0 {
		outputRate = dcfg.SampleRate
	}
	if outputRate < 0 {
		return nil, fmt.Errorf("invalid output sample rate: %d", outputRate)
	}

	if err := det.Reset(); err != nil {
		return nil, err
	}

	window := uint64(det.WindowSize())
	s := &StreamSegmenter{
		id:                uuid.NewString(),
		det:               det,
		cfg:               dcfg,
		outputDir:         cfg.OutputDir,
		outputRate:        outputRate,
		minSilenceWindows: uint32(dcfg.minSilenceSamples()/window) + 1,
	}
	return s, nil
}

// ID returns the stream's session identifier.
func (s *StreamSegmenter) ID() string { return s.id }

// SegmentCount returns the number of segments written so far.
func (s *StreamSegmenter) SegmentCount() int { return int(s.segmentCounter) }

// InSpeech reports whether the stream is currently inside a confirmed
// speech region.
func (s *StreamSegmenter) InSpeech() bool { return s.inSpeech }

// SpeechStart returns the start of the current speech region in seconds.
// Only meaningful while InSpeech is true.
func (s *StreamSegmenter) SpeechStart() float32 {
	return float32(s.speechStartSample) / float32(s.cfg.SampleRate)
}

// Segments returns the metadata of the segments emitted so far, with
// unpadded times in seconds of the input clock.
func (s *StreamSegmenter) Segments() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// ProcessChunk feeds one chunk of samples at the detector's rate. A
// trailing partial window is held back and framed together with the next
// chunk. Returns the number of segments written during this call.
//
// On inference failure the stream state is unchanged since the last
// successful frame and the call can be retried with an empty chunk.
func (s *StreamSegmenter) ProcessChunk(samples []float32) (int, error) {
	s.accumulated = append(s.accumulated, samples...)
	s.pending = append(s.pending, samples...)

	window := s.det.WindowSize()
	emitted := 0
	for len(s.pending) >= window {
		prob, frameStart, err := s.det.stepFrame(s.pending[:window])
		if err != nil {
			return emitted, err
		}
		s.pending = s.pending[window:]
		s.totalSamplesProcessed += uint64(window)

		if s.advanceStream(prob, frameStart) {
			emitted++
		}
	}
	return emitted, nil
}

// ProcessChunkResampled feeds a chunk recorded at inputSampleRate,
// coercing it to the detector's rate with linear resampling first.
func (s *StreamSegmenter) ProcessChunkResampled(samples []float32, inputSampleRate int) (int, error) {
	if inputSampleRate == s.cfg.SampleRate {
		return s.ProcessChunk(samples)
	}
	resampled, err := audio.Resample(samples, inputSampleRate, s.cfg.SampleRate)
	if err != nil {
		return 0, err
	}
	return s.ProcessChunk(resampled)
}

// advanceStream updates the debounced counters for one frame and reports
// whether a segment was written.
func (s *StreamSegmenter) advanceStream(prob float32, frameStart uint64) bool {
	window := uint64(s.det.WindowSize())
	voice := prob >= s.cfg.Threshold

	if voice {
		s.consecSpeech++
		s.consecSilence = 0
		s.probSum += float64(prob)
		s.speechFrames++

		if !s.inSpeech && s.consecSpeech >= minSpeechWindows {
			s.inSpeech = true
			// Backdate to the first of the agreeing speech windows.
			s.speechStartSample = frameStart - uint64(s.consecSpeech-1)*window
			slog.Debug("stream speech start",
				slog.String("stream", s.id),
				slog.Uint64("sample", s.speechStartSample))
		}
		if s.inSpeech {
			s.speechEndSample = frameStart + window
		}
		return false
	}

	s.consecSilence++
	s.consecSpeech = 0
	if !s.inSpeech {
		// Speech windows that never opened a segment do not count toward
		// the next segment's confidence.
		s.probSum = 0
		s.speechFrames = 0
	}

	if s.inSpeech && s.consecSilence >= s.minSilenceWindows {
		start, end := s.speechStartSample, s.speechEndSample
		s.inSpeech = false
		s.consecSpeech = 0
		s.consecSilence = 0

		written := false
		if end-start >= s.cfg.minSpeechSamples() {
			written = s.emit(start, end)
		} else {
			slog.Debug("stream dropping short segment",
				slog.String("stream", s.id),
				slog.Uint64("start", start),
				slog.Uint64("end", end))
		}
		s.probSum = 0
		s.speechFrames = 0
		return written
	}
	return false
}

// emit runs the emission pipeline for [startSample, endSample): pad,
// slice, resample, peak-normalize, write. A failed WAV write skips the
// segment and leaves the counter unchanged. Reports whether the segment
// was written.
func (s *StreamSegmenter) emit(startSample, endSample uint64) bool {
	pad := s.cfg.speechPadSamples()

	paddedStart := uint64(0)
	if startSample > pad {
		paddedStart = startSample - pad
	}
	paddedEnd := endSample + pad
	if limit := uint64(len(s.accumulated)); paddedEnd > limit {
		paddedEnd = limit
	}
	if paddedStart >= paddedEnd {
		return false
	}

	segmentAudio := make([]float32, paddedEnd-paddedStart)
	copy(segmentAudio, s.accumulated[paddedStart:paddedEnd])

	if s.outputRate != s.cfg.SampleRate {
		resampled, err := audio.Resample(segmentAudio, s.cfg.SampleRate, s.outputRate)
		if err != nil {
			slog.Error("stream resample failed", slog.String("stream", s.id), slog.Any("error", err))
			return false
		}
		segmentAudio = resampled
	}

	normalizePeak(segmentAudio)

	name := fmt.Sprintf("segment_%d.wav", s.segmentCounter+1)
	path := filepath.Join(s.outputDir, name)
	if err := audio.WriteWAVFile(path, segmentAudio, s.outputRate); err != nil {
		slog.Error("stream segment write failed",
			slog.String("stream", s.id),
			slog.String("path", path),
			slog.Any("error", err))
		return false
	}
	s.segmentCounter++

	rate := float32(s.cfg.SampleRate)
	seg := Segment{
		StartTime: float32(startSample) / rate,
		EndTime:   float32(endSample) / rate,
		IsSpeech:  true,
	}
	if s.speechFrames > 0 {
		conf := s.probSum / float64(s.speechFrames)
		if conf > 1 {
			conf = 1
		}
		seg.Confidence = float32(conf)
	}
	s.segments = append(s.segments, seg)

	slog.Debug("stream segment written",
		slog.String("stream", s.id),
		slog.String("path", path),
		slog.Float64("startAt", float64(seg.StartTime)),
		slog.Float64("endAt", float64(seg.EndTime)))
	return true
}

// Finalize flushes a still-open segment if its unpadded duration reaches
// the minimum speech length, then returns the total number of segments
// written over the stream's lifetime.
func (s *StreamSegmenter) Finalize() (int, error) {
	if s.inSpeech {
		start, end := s.speechStartSample, s.speechEndSample
		s.inSpeech = false
		s.consecSpeech = 0
		s.consecSilence = 0
		if end > start && end-start >= s.cfg.minSpeechSamples() {
			s.emit(start, end)
		}
		s.probSum = 0
		s.speechFrames = 0
	}
	return int(s.segmentCounter), nil
}

// Close drops the stream's buffers. The borrowed detector is left to its
// owner.
func (s *StreamSegmenter) Close() error {
	if s == nil {
		return errors.New("invalid nil stream")
	}
	s.accumulated = nil
	s.pending = nil
	return nil
}

// normalizePeak scales the buffer so its peak magnitude is 0.9. An
// all-zero buffer is left untouched.
func normalizePeak(samples []float32) {
	var peak float32
	for _, f := range samples {
		if f < 0 {
			f = -f
		}
		if f > peak {
			peak = f
		}
	}
	if peak == 0 {
		return
	}
	gain := 0.9 / peak
	for i := range samples {
		samples[i] *= gain
	}
}
