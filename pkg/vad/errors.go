package vad

import "errors"

var (
	// ErrModelLoad indicates the ONNX model file was missing, unreadable,
	// or its graph signature did not match. Surfaced from NewDetector;
	// the detector is unusable afterwards.
	ErrModelLoad = errors.New("vad: model load failed")

	// ErrBadFrameSize indicates ProcessChunk was called with a slice whose
	// length is not exactly one window. Recoverable; no state is mutated.
	ErrBadFrameSize = errors.New("vad: bad frame size")

	// ErrInference indicates a forward pass failed. Detector state is
	// unchanged since the last successful frame.
	ErrInference = errors.New("vad: inference failed")
)
