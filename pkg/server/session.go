package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jims57/silero-vad/pkg/audio"
	"github.com/jims57/silero-vad/pkg/trace"
	"github.com/jims57/silero-vad/pkg/vad"
)

// command is a JSON text message from the client.
type command struct {
	Type string `json:"type"`
}

// session is one WebSocket connection with its own detector and stream.
type session struct {
	id       string
	conn     *websocket.Conn
	detector *vad.Detector
	stream   *vad.StreamSegmenter
	encoding string

	// preRoll keeps the most recent audio for level reporting.
	preRoll *audio.RingBuffer

	wasSpeaking bool
	reported    int
	closed      bool
}

// run drives the read loop until the client disconnects, sends a finalize
// command, or ctx expires.
func (s *session) run(ctx context.Context, span oteltrace.Span) {
	for {
		select {
		case <-ctx.Done():
			s.finalize(span)
			return
		default:
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[vad-server] session %s read error: %v", s.id, err)
			}
			s.finalize(span)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := s.handleAudio(data, span); err != nil {
				trace.RecordError(span, err)
				s.conn.WriteJSON(Event{Type: "error", Error: err.Error()})
			}
		case websocket.TextMessage:
			var cmd command
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.conn.WriteJSON(Event{Type: "error", Error: "malformed command"})
				continue
			}
			if cmd.Type == "finalize" {
				s.finalize(span)
				return
			}
		}
	}
}

// handleAudio decodes one binary chunk, feeds it to the stream, and emits
// events for speech boundaries and written segments.
func (s *session) handleAudio(data []byte, span oteltrace.Span) error {
	var samples []float32
	if s.encoding == "mulaw" {
		samples = audio.MuLawToFloat32(data)
	} else {
		samples = audio.BytesToFloat32(data)
	}
	if len(samples) == 0 {
		return nil
	}

	s.preRoll.Write(samples)

	if _, err := s.stream.ProcessChunk(samples); err != nil {
		return err
	}

	if !s.wasSpeaking && s.stream.InSpeech() {
		s.wasSpeaking = true
		s.conn.WriteJSON(Event{
			Type:      "speech_start",
			SessionID: s.id,
			TimeS:     s.stream.SpeechStart(),
			Level:     peakLevel(s.preRoll.ReadAll()),
		})
	}

	segments := s.stream.Segments()
	for i := s.reported; i < len(segments); i++ {
		seg := segments[i]
		s.wasSpeaking = false
		trace.AddEvent(span, "segment_written",
			trace.SegmentAttrs(i+1, float64(seg.EndTime-seg.StartTime), seg.Confidence)...)
		s.conn.WriteJSON(Event{
			Type:       "speech_end",
			SessionID:  s.id,
			StartS:     seg.StartTime,
			EndS:       seg.EndTime,
			Confidence: seg.Confidence,
			Index:      i + 1,
		})
	}
	s.reported = len(segments)

	if s.wasSpeaking && !s.stream.InSpeech() {
		// The region closed but was too short to emit.
		s.wasSpeaking = false
	}

	return nil
}

// finalize flushes the stream, reports the summary, and closes the socket.
func (s *session) finalize(span oteltrace.Span) {
	if s.closed {
		return
	}

	count, err := s.stream.Finalize()
	if err != nil {
		trace.RecordError(span, err)
	}
	s.conn.WriteJSON(Event{
		Type:      "finalized",
		SessionID: s.id,
		Segments:  count,
	})
	log.Printf("[vad-server] session %s finalized with %d segments", s.id, count)
	s.close()
}

func (s *session) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stream.Close()
	s.detector.Destroy()
	s.conn.Close()
}

// peakLevel returns the peak magnitude of the buffered samples.
func peakLevel(samples []float32) float32 {
	var peak float32
	for _, f := range samples {
		if f < 0 {
			f = -f
		}
		if f > peak {
			peak = f
		}
	}
	return peak
}
