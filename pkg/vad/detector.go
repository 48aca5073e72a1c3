// Package vad provides streaming Voice Activity Detection built on the
// Silero VAD v5 model.
//
// A Detector wraps the neural model with a deterministic segmentation
// state machine that turns per-frame speech probabilities into
// timestamped segments. It supports a batch pass over a finite buffer
// (ProcessAudio) and a frame-at-a-time pass (ProcessChunk); the
// StreamSegmenter layers chunked streaming and per-segment WAV extraction
// on top.
//
// Usage:
//
//	// Initialize the ONNX runtime (call once at startup)
//	if err := vad.InitRuntime(""); err != nil {
//	    log.Fatal(err)
//	}
//	defer vad.DestroyRuntime()
//
//	detector, err := vad.NewDetector(vad.Config{SampleRate: 16000}, "silero_vad.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer detector.Destroy()
//
//	segments, err := detector.ProcessAudio(samples)
package vad

import (
	"fmt"
	"log/slog"
)

// Result is the per-frame detection outcome.
type Result struct {
	// IsVoice reports whether the frame probability reached the threshold.
	IsVoice bool
	// Probability is the model's speech probability for the frame.
	Probability float32
	// TimestampMs is the start of the frame on the monotone sample clock.
	TimestampMs int64
}

// Segment is one detected speech region.
type Segment struct {
	// StartTime and EndTime are in seconds from the start of the pass.
	StartTime float32
	EndTime   float32
	// Confidence is the mean frame probability over the segment, in [0, 1].
	Confidence float32
	// IsSpeech is always true for emitted segments.
	IsSpeech bool
}

// openSegment is the in-progress speech region of the batch machine.
type openSegment struct {
	startSample uint64
	confSum     float64
	frameCount  uint64
}

// Detector is the detection façade. It owns the inference engine, the
// 64-sample acoustic context carried between frames, and the batch
// segmentation state. A Detector is a mutable-state object and must be
// used from one goroutine at a time.
type Detector struct {
	cfg    Config
	engine Engine
	window int

	// context holds the last 64 input samples of the previous frame,
	// prepended to the next window for acoustic continuity. Zeroed on reset.
	context [contextLen]float32
	// inputBuf is the reused context+window model input.
	inputBuf []float32

	// currentSample counts input samples consumed since the last reset.
	// It advances by exactly one window per processed frame.
	currentSample uint64

	// Batch machine state (see segmenter.go).
	triggered bool
	tempEnd   uint64
	prevEnd   uint64
	nextStart uint64
	open      *openSegment
	segments  []Segment
}

// NewDetector loads the model at modelPath and returns a ready detector.
// Failures to load or validate the model are reported as ErrModelLoad.
func NewDetector(cfg Config, modelPath string) (*Detector, error) {
	cfg = cfg.withDefaults()
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if modelPath == "" {
		return nil, fmt.Errorf("%w: model path is required", ErrModelLoad)
	}

	engine, err := newEngine(modelPath, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return NewDetectorWithEngine(cfg, engine)
}

// NewDetectorWithEngine builds a detector on a caller-supplied inference
// engine. Intended for tests driving the segmentation machinery with a
// MockEngine.
func NewDetectorWithEngine(cfg Config, engine Engine) (*Detector, error) {
	cfg = cfg.withDefaults()
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if engine == nil {
		return nil, fmt.Errorf("invalid nil engine")
	}

	d := &Detector{
		cfg:    cfg,
		engine: engine,
		window: cfg.windowSize(),
	}
	d.inputBuf = make([]float32, 0, contextLen+d.window)
	return d, nil
}

// Config returns the active configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// WindowSize returns the frame length in samples for the configured rate.
func (d *Detector) WindowSize() int {
	return d.window
}

// stepFrame runs one window through the model: it prepends the carried
// context, infers, rotates the context, and advances the sample clock.
// On inference failure no state is mutated. Returns the probability and
// the start-of-frame sample index.
func (d *Detector) stepFrame(window []float32) (float32, uint64, error) {
	d.inputBuf = d.inputBuf[:0]
	d.inputBuf = append(d.inputBuf, d.context[:]...)
	d.inputBuf = append(d.inputBuf, window...)

	prob, err := d.engine.Infer(d.inputBuf)
	if err != nil {
		return 0, 0, err
	}

	// The last 64 samples of this model input become context for the next.
	copy(d.context[:], d.inputBuf[len(d.inputBuf)-contextLen:])
	d.currentSample += uint64(d.window)

	return prob, d.currentSample - uint64(d.window), nil
}

// ProcessChunk runs detection on exactly one window of samples and
// advances the batch segmentation machine. It fails with ErrBadFrameSize,
// mutating nothing, when the slice is not exactly one window long.
func (d *Detector) ProcessChunk(samples []float32) (Result, error) {
	if len(samples) != d.window {
		return Result{}, fmt.Errorf("%w: got %d samples, want %d", ErrBadFrameSize, len(samples), d.window)
	}

	prob, frameStart, err := d.stepFrame(samples)
	if err != nil {
		return Result{}, err
	}
	d.advanceBatch(prob)

	return Result{
		IsVoice:     prob >= d.cfg.Threshold,
		Probability: prob,
		TimestampMs: int64(frameStart * 1000 / uint64(d.cfg.SampleRate)),
	}, nil
}

// ProcessAudio resets the detector and runs a batch pass over the buffer,
// framing it into consecutive windows and dropping any final partial
// window. A still-open segment at the end of the buffer is closed there
// and emitted unconditionally.
//
// On inference failure the pass aborts and the segments finalized before
// the failure are returned together with the error.
func (d *Detector) ProcessAudio(samples []float32) ([]Segment, error) {
	if err := d.Reset(); err != nil {
		return nil, err
	}

	slog.Debug("starting batch detection", slog.Int("samplesLen", len(samples)))

	for i := 0; i+d.window <= len(samples); i += d.window {
		prob, _, err := d.stepFrame(samples[i : i+d.window])
		if err != nil {
			return d.snapshotSegments(), err
		}
		d.advanceBatch(prob)
	}

	// Final flush: the trailing segment is emitted without the min-speech
	// filter.
	if d.triggered && d.open != nil {
		d.emitSegment(d.open.startSample, d.currentSample)
		d.open = nil
		d.triggered = false
		d.prevEnd, d.nextStart, d.tempEnd = 0, 0, 0
	}

	slog.Debug("batch detection done", slog.Int("segmentsLen", len(d.segments)))

	return d.snapshotSegments(), nil
}

// Segments returns the segments emitted since the last reset.
func (d *Detector) Segments() []Segment {
	return d.snapshotSegments()
}

func (d *Detector) snapshotSegments() []Segment {
	out := make([]Segment, len(d.segments))
	copy(out, d.segments)
	return out
}

// Reset zeroes the acoustic context and the model's hidden state, rewinds
// the sample clock, and clears all segmentation state.
func (d *Detector) Reset() error {
	if d == nil {
		return fmt.Errorf("invalid nil detector")
	}

	clear(d.context[:])
	d.currentSample = 0
	d.triggered = false
	d.tempEnd = 0
	d.prevEnd = 0
	d.nextStart = 0
	d.open = nil
	d.segments = nil

	return d.engine.Reset()
}

// Destroy releases the inference engine. The detector must not be used
// after calling Destroy.
func (d *Detector) Destroy() error {
	if d == nil {
		return fmt.Errorf("invalid nil detector")
	}
	return d.engine.Destroy()
}
