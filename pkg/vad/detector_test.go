package vad

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getModelPath finds the Silero model in common locations, skipping the
// test when it is absent.
func getModelPath(t *testing.T) string {
	t.Helper()

	paths := []string{
		os.Getenv("SILERO_MODEL"),
		"../../models/silero_vad.onnx",
		"models/silero_vad.onnx",
		"/tmp/silero_vad.onnx",
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		absPath, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath
		}
	}

	t.Skip("silero_vad.onnx model not found, skipping test")
	return ""
}

// requireRuntime skips when the onnxruntime shared library cannot be
// loaded in this environment.
func requireRuntime(t *testing.T) {
	t.Helper()
	if err := InitRuntime(""); err != nil {
		t.Skipf("onnxruntime unavailable: %v", err)
	}
}

// scriptEngine returns a mock whose i-th Infer call yields probs[i],
// without cycling.
func scriptEngine(probs []float32) *MockEngine {
	idx := 0
	return &MockEngine{
		InferFunc: func(input []float32) (float32, error) {
			p := float32(0)
			if idx < len(probs) {
				p = probs[idx]
			}
			idx++
			return p, nil
		},
	}
}

// repeat builds a probability script from (value, count) runs.
func repeat(runs ...[2]float32) []float32 {
	var out []float32
	for _, r := range runs {
		for i := 0; i < int(r[1]); i++ {
			out = append(out, r[0])
		}
	}
	return out
}

func newTestDetector(t *testing.T, engine Engine) *Detector {
	t.Helper()
	d, err := NewDetectorWithEngine(Config{SampleRate: 16000}, engine)
	require.NoError(t, err)
	return d
}

func TestNewDetectorWithEngineValidation(t *testing.T) {
	_, err := NewDetectorWithEngine(Config{SampleRate: 44100}, NewMockEngine())
	assert.Error(t, err)

	_, err = NewDetectorWithEngine(Config{SampleRate: 16000}, nil)
	assert.Error(t, err)
}

func TestNewDetectorEmptyModelPath(t *testing.T) {
	_, err := NewDetector(Config{SampleRate: 16000}, "")
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestProcessChunkBadFrameSize(t *testing.T) {
	mock := NewMockEngineWithProb(0.9)
	d := newTestDetector(t, mock)

	_, err := d.ProcessChunk(make([]float32, 511))
	require.ErrorIs(t, err, ErrBadFrameSize)
	assert.Equal(t, 0, mock.InferCallCount(), "no inference on bad frame size")

	// The rejected call mutated nothing: the next valid chunk is the
	// first frame.
	res, err := d.ProcessChunk(make([]float32, 512))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TimestampMs)
	assert.True(t, res.IsVoice)
}

func TestProcessChunkCarriesContext(t *testing.T) {
	mock := NewMockEngineWithProb(0.1)
	d := newTestDetector(t, mock)

	chunk1 := make([]float32, 512)
	for i := range chunk1 {
		chunk1[i] = float32(i) / 512.0
	}
	chunk2 := make([]float32, 512)

	_, err := d.ProcessChunk(chunk1)
	require.NoError(t, err)
	_, err = d.ProcessChunk(chunk2)
	require.NoError(t, err)

	require.Equal(t, 2, mock.InferCallCount())

	first := mock.InferCalls[0]
	second := mock.InferCalls[1]
	require.Len(t, first, 512+64)
	require.Len(t, second, 512+64)

	// First frame is prefixed with a zero context.
	for i := 0; i < 64; i++ {
		assert.Equal(t, float32(0), first[i])
	}
	// The next frame's context is the previous model input's tail.
	assert.Equal(t, first[len(first)-64:], second[:64])
}

func TestProcessChunkTimestampsMonotone(t *testing.T) {
	d := newTestDetector(t, NewMockEngineWithProb(0.2))

	var last int64 = -1
	for i := 0; i < 5; i++ {
		res, err := d.ProcessChunk(make([]float32, 512))
		require.NoError(t, err)
		assert.Greater(t, res.TimestampMs, last)
		last = res.TimestampMs
	}
	// 512 samples at 16 kHz = 32 ms per frame.
	assert.Equal(t, int64(4*32), last)
}

func TestProcessAudioSilence(t *testing.T) {
	d := newTestDetector(t, NewMockEngineWithProb(0.0))

	segments, err := d.ProcessAudio(make([]float32, 16000))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestProcessAudioSingleSegment(t *testing.T) {
	script := repeat([2]float32{0.9, 10}, [2]float32{0.0, 10})
	d := newTestDetector(t, scriptEngine(script))

	segments, err := d.ProcessAudio(make([]float32, 20*512))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	seg := segments[0]
	assert.Equal(t, float32(0), seg.StartTime)
	// Silence starts after frame 10 (sample 5120 ends frame 10); the
	// segment closes at the first silence frame's end-of-frame sample.
	assert.InDelta(t, 5632.0/16000.0, seg.EndTime, 1e-6)
	assert.True(t, seg.IsSpeech)
	assert.Greater(t, seg.Confidence, float32(0.5))
}

func TestProcessAudioFinalFlush(t *testing.T) {
	// Speech running to the end of the buffer is emitted unconditionally.
	d := newTestDetector(t, NewMockEngineWithProb(0.9))

	segments, err := d.ProcessAudio(make([]float32, 10*512))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, float32(0), segments[0].StartTime)
	assert.InDelta(t, 5120.0/16000.0, segments[0].EndTime, 1e-6)
}

func TestProcessAudioShortFinalFlush(t *testing.T) {
	// Even a single speech frame at the very end is flushed: the final
	// segment skips the min-speech filter.
	script := repeat([2]float32{0.0, 9}, [2]float32{0.9, 1})
	d := newTestDetector(t, scriptEngine(script))

	segments, err := d.ProcessAudio(make([]float32, 10*512))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Less(t, segments[0].EndTime-segments[0].StartTime, float32(0.25))
}

func TestProcessAudioDropsShortSpeech(t *testing.T) {
	script := repeat([2]float32{0.9, 2}, [2]float32{0.0, 13})
	d := newTestDetector(t, scriptEngine(script))

	segments, err := d.ProcessAudio(make([]float32, 15*512))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestProcessAudioHysteresisBand(t *testing.T) {
	// Probabilities in [threshold-0.15, threshold) keep the segment open
	// without advancing silence accounting.
	script := repeat([2]float32{0.9, 10}, [2]float32{0.4, 5}, [2]float32{0.0, 5})
	d := newTestDetector(t, scriptEngine(script))

	segments, err := d.ProcessAudio(make([]float32, 20*512))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	// Silence accounting only starts at frame 16, so the segment extends
	// through the band frames.
	assert.InDelta(t, 8192.0/16000.0, segments[0].EndTime, 1e-6)
}

func TestProcessAudioMaxSpeechSplit(t *testing.T) {
	// 35 s of continuous speech followed by 1 s of silence must split at
	// the max-speech cap into exactly two segments totalling ~35 s.
	speechFrames := 35 * 16000 / 512 // 1093
	silenceFrames := 1 * 16000 / 512 // 31
	script := repeat([2]float32{0.9, float32(speechFrames)}, [2]float32{0.0, float32(silenceFrames)})
	d := newTestDetector(t, scriptEngine(script))

	total := (speechFrames + silenceFrames) * 512
	segments, err := d.ProcessAudio(make([]float32, total))
	require.NoError(t, err)
	require.Len(t, segments, 2)

	boundary := segments[0].EndTime
	assert.Greater(t, boundary, float32(29.0))
	assert.Less(t, boundary, float32(32.0))
	assert.GreaterOrEqual(t, segments[1].StartTime, segments[0].EndTime)

	totalSpeech := (segments[0].EndTime - segments[0].StartTime) +
		(segments[1].EndTime - segments[1].StartTime)
	assert.InDelta(t, 35.0, totalSpeech, 1.0)
}

func TestProcessAudioDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	script := make([]float32, 200)
	for i := range script {
		script[i] = rng.Float32()
	}

	run := func() []Segment {
		d := newTestDetector(t, scriptEngine(script))
		segments, err := d.ProcessAudio(make([]float32, len(script)*512))
		require.NoError(t, err)
		return segments
	}

	assert.Equal(t, run(), run())
}

func TestProcessAudioSegmentInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	script := make([]float32, 300)
	for i := range script {
		script[i] = rng.Float32()
	}

	d := newTestDetector(t, scriptEngine(script))
	segments, err := d.ProcessAudio(make([]float32, len(script)*512))
	require.NoError(t, err)

	for i, seg := range segments {
		assert.Less(t, seg.StartTime, seg.EndTime, "segment %d", i)
		assert.GreaterOrEqual(t, seg.Confidence, float32(0), "segment %d", i)
		assert.LessOrEqual(t, seg.Confidence, float32(1), "segment %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, seg.StartTime, segments[i-1].EndTime,
				"segments %d and %d overlap", i-1, i)
		}
		// Every segment but the final flush satisfies the min-speech
		// duration.
		if i < len(segments)-1 {
			assert.GreaterOrEqual(t, seg.EndTime-seg.StartTime, float32(0.25),
				"segment %d shorter than min speech", i)
		}
	}
}

func TestProcessAudioDropsPartialWindow(t *testing.T) {
	mock := NewMockEngineWithProb(0.0)
	d := newTestDetector(t, mock)

	_, err := d.ProcessAudio(make([]float32, 512*3+100))
	require.NoError(t, err)
	assert.Equal(t, 3, mock.InferCallCount())
}

func TestProcessAudioAbortsOnInferenceError(t *testing.T) {
	// 10 speech + 5 silence closes one segment; the failure afterwards
	// aborts the pass but keeps the finalized segment.
	script := repeat([2]float32{0.9, 10}, [2]float32{0.0, 5}, [2]float32{0.9, 2})
	inferErr := errors.New("forward pass exploded")
	idx := 0
	mock := &MockEngine{
		InferFunc: func(input []float32) (float32, error) {
			if idx >= len(script) {
				return 0, inferErr
			}
			p := script[idx]
			idx++
			return p, nil
		},
	}
	d := newTestDetector(t, mock)

	segments, err := d.ProcessAudio(make([]float32, 20*512))
	require.ErrorIs(t, err, inferErr)
	assert.Len(t, segments, 1)
	// The clock stopped at the last successful frame.
	assert.Equal(t, uint64(17*512), d.currentSample)
}

func TestResetClearsState(t *testing.T) {
	mock := NewMockEngineWithProb(0.9)
	d := newTestDetector(t, mock)

	for i := 0; i < 3; i++ {
		_, err := d.ProcessChunk(make([]float32, 512))
		require.NoError(t, err)
	}
	require.True(t, d.triggered)

	require.NoError(t, d.Reset())
	assert.True(t, mock.ResetCalled)
	assert.Equal(t, uint64(0), d.currentSample)
	assert.False(t, d.triggered)
	assert.Empty(t, d.Segments())
	for _, c := range d.context {
		assert.Equal(t, float32(0), c)
	}
}

func TestConfigAccessor(t *testing.T) {
	d := newTestDetector(t, NewMockEngine())
	cfg := d.Config()
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, float32(0.5), cfg.Threshold)
	assert.Equal(t, 512, d.WindowSize())
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.0.0-silero-v5", Version)
}

func TestDetectorWindowSize8kHz(t *testing.T) {
	d, err := NewDetectorWithEngine(Config{SampleRate: 8000}, NewMockEngineWithProb(0.1))
	require.NoError(t, err)
	assert.Equal(t, 256, d.WindowSize())

	_, err = d.ProcessChunk(make([]float32, 512))
	assert.ErrorIs(t, err, ErrBadFrameSize)

	_, err = d.ProcessChunk(make([]float32, 256))
	assert.NoError(t, err)
}

// Model-backed seed scenarios. These exercise the real ONNX graph and are
// skipped when the model file is not available.

func TestModelSilenceProducesNoSegments(t *testing.T) {
	modelPath := getModelPath(t)
	requireRuntime(t)

	d, err := NewDetector(Config{SampleRate: 16000}, modelPath)
	require.NoError(t, err)
	defer d.Destroy()

	segments, err := d.ProcessAudio(make([]float32, 16000))
	require.NoError(t, err)
	assert.Empty(t, segments)

	// Every per-frame probability for silence stays below the threshold.
	require.NoError(t, d.Reset())
	for i := 0; i < 31; i++ {
		res, err := d.ProcessChunk(make([]float32, 512))
		require.NoError(t, err)
		assert.Less(t, res.Probability, float32(0.5))
	}
}

func TestModelSineIsNotSpeech(t *testing.T) {
	modelPath := getModelPath(t)
	requireRuntime(t)

	d, err := NewDetector(Config{SampleRate: 16000}, modelPath)
	require.NoError(t, err)
	defer d.Destroy()

	// A pure 440 Hz tone at amplitude 0.5 anchors the non-speech baseline.
	samples := make([]float32, 2*16000)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	segments, err := d.ProcessAudio(samples)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestModelMissingFile(t *testing.T) {
	requireRuntime(t)
	_, err := NewDetector(Config{SampleRate: 16000}, filepath.Join(t.TempDir(), "missing.onnx"))
	assert.ErrorIs(t, err, ErrModelLoad)
}
