// Package server exposes the streaming VAD engine over WebSocket: binary
// messages carry mono PCM16LE (or μ-law) audio chunks, text messages carry
// JSON VAD events back to the client.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jims57/silero-vad/pkg/audio"
	"github.com/jims57/silero-vad/pkg/trace"
	"github.com/jims57/silero-vad/pkg/vad"
)

// DetectorFactory creates a detector for one session. Each session holds
// its own model session; detectors are never shared across connections.
type DetectorFactory func() (*vad.Detector, error)

// Config holds the configuration for the WebSocket VAD server.
type Config struct {
	// Addr is the address to listen on (e.g. ":8080").
	Addr string

	// Path is the WebSocket endpoint path (e.g. "/vad").
	Path string

	// ModelPath is the Silero VAD ONNX model used by the default factory.
	ModelPath string

	// Detector is the detector configuration applied to every session.
	Detector vad.Config

	// OutputDir is the root directory for per-session segment files.
	OutputDir string

	// PreRollMs sizes the level-meter ring buffer. Zero selects 300 ms.
	PreRollMs int

	// SessionTimeout is the maximum session duration. Zero means no limit.
	SessionTimeout time.Duration

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Path:            "/vad",
		Detector:        vad.Config{SampleRate: 16000},
		OutputDir:       "segments",
		PreRollMs:       300,
		SessionTimeout:  30 * time.Minute,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Event is a JSON message sent to the client.
type Event struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id,omitempty"`
	TimeS      float32 `json:"time_s,omitempty"`
	StartS     float32 `json:"start_s,omitempty"`
	EndS       float32 `json:"end_s,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
	Index      int     `json:"index,omitempty"`
	Level      float32 `json:"level,omitempty"`
	Segments   int     `json:"segments,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Server is the WebSocket VAD server.
type Server struct {
	config  *Config
	factory DetectorFactory

	sessions   map[string]*session
	sessionsMu sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a WebSocket VAD server. A nil config selects
// DefaultConfig; the default detector factory loads Config.ModelPath.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PreRollMs == 0 {
		config.PreRollMs = 300
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		sessions: make(map[string]*session),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // allow all origins; customize for production
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.factory = func() (*vad.Detector, error) {
		return vad.NewDetector(config.Detector, config.ModelPath)
	}
	return s
}

// SetDetectorFactory overrides how per-session detectors are built.
// Must be called before Start.
func (s *Server) SetDetectorFactory(factory DetectorFactory) {
	s.factory = factory
}

// Handler returns the WebSocket handler, for mounting on an external mux.
func (s *Server) Handler() http.HandlerFunc {
	return s.handleWebSocket
}

// Start starts the server and blocks until ctx is done or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.mux.HandleFunc(s.config.Path, s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.mux,
	}

	log.Printf("[vad-server] starting on %s%s", s.config.Addr, s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Stop shuts the server down and closes all sessions.
func (s *Server) Stop() error {
	s.cancel()

	s.sessionsMu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessions = make(map[string]*session)
	s.sessionsMu.Unlock()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[vad-server] upgrade failed: %v", err)
		return
	}

	encoding := r.URL.Query().Get("encoding")
	if encoding == "" {
		encoding = "pcm16"
	}
	if encoding != "pcm16" && encoding != "mulaw" {
		conn.WriteJSON(Event{Type: "error", Error: fmt.Sprintf("unsupported encoding: %s", encoding)})
		conn.Close()
		return
	}

	detector, err := s.factory()
	if err != nil {
		log.Printf("[vad-server] detector create failed: %v", err)
		conn.WriteJSON(Event{Type: "error", Error: err.Error()})
		conn.Close()
		return
	}

	id := uuid.NewString()
	stream, err := vad.NewStreamSegmenter(detector, vad.StreamConfig{
		OutputDir: filepath.Join(s.config.OutputDir, id),
	})
	if err != nil {
		log.Printf("[vad-server] stream create failed: %v", err)
		conn.WriteJSON(Event{Type: "error", Error: err.Error()})
		detector.Destroy()
		conn.Close()
		return
	}

	cfg := detector.Config()
	sess := &session{
		id:       id,
		conn:     conn,
		detector: detector,
		stream:   stream,
		encoding: encoding,
		preRoll:  audio.NewRingBuffer(cfg.SampleRate, s.config.PreRollMs),
	}

	s.sessionsMu.Lock()
	s.sessions[id] = sess
	s.sessionsMu.Unlock()

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, id)
		s.sessionsMu.Unlock()
		sess.close()
	}()

	ctx := s.ctx
	if s.config.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SessionTimeout)
		defer cancel()
	}

	ctx, span := trace.StartSpan(ctx, "vad.session")
	span.SetAttributes(trace.SessionAttrs(id, cfg.SampleRate, cfg.Threshold)...)
	defer span.End()

	conn.WriteJSON(Event{Type: "session_created", SessionID: id})
	log.Printf("[vad-server] session %s started (encoding=%s)", id, encoding)

	sess.run(ctx, span)
}
