package trace

import "go.opentelemetry.io/otel/attribute"

// Common attribute keys used throughout the module.
const (
	AttrSessionID = "session.id"

	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChunkSize  = "audio.chunk_size"
	AttrAudioEncoding   = "audio.encoding"

	AttrVADThreshold   = "vad.threshold"
	AttrVADSegmentIdx  = "vad.segment_index"
	AttrVADSegmentSecs = "vad.segment_seconds"
	AttrVADConfidence  = "vad.confidence"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// SessionAttrs creates attributes for one detector session.
func SessionAttrs(sessionID string, sampleRate int, threshold float32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Float64(AttrVADThreshold, float64(threshold)),
	}
}

// SegmentAttrs creates attributes for one emitted segment.
func SegmentAttrs(index int, seconds float64, confidence float32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrVADSegmentIdx, index),
		attribute.Float64(AttrVADSegmentSecs, seconds),
		attribute.Float64(AttrVADConfidence, float64(confidence)),
	}
}
