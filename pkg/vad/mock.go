package vad

import "sync"

// MockEngine is a scripted Engine implementation for testing the
// segmentation machinery without a model. Behavior is customized through
// the InferFunc field.
type MockEngine struct {
	// InferFunc is called when Infer is invoked. If nil, Infer returns 0.0
	// (no speech detected).
	InferFunc func(input []float32) (float32, error)

	// InferCalls records the input of every Infer call for verification.
	InferCalls [][]float32

	// ResetCalled tracks if Reset was called.
	ResetCalled bool

	// DestroyCalled tracks if Destroy was called.
	DestroyCalled bool

	mu sync.Mutex
}

// NewMockEngine creates a MockEngine with default behavior.
func NewMockEngine() *MockEngine {
	return &MockEngine{InferCalls: make([][]float32, 0)}
}

// NewMockEngineWithProb creates a MockEngine that returns a fixed
// probability for every window.
func NewMockEngineWithProb(prob float32) *MockEngine {
	return &MockEngine{
		InferFunc: func(input []float32) (float32, error) {
			return prob, nil
		},
		InferCalls: make([][]float32, 0),
	}
}

// NewMockEngineWithSequence creates a MockEngine that returns the given
// probabilities in order, cycling back to the beginning when exhausted.
func NewMockEngineWithSequence(probs []float32) *MockEngine {
	idx := 0
	return &MockEngine{
		InferFunc: func(input []float32) (float32, error) {
			if len(probs) == 0 {
				return 0, nil
			}
			prob := probs[idx]
			idx = (idx + 1) % len(probs)
			return prob, nil
		},
		InferCalls: make([][]float32, 0),
	}
}

// Infer implements Engine.
func (m *MockEngine) Infer(input []float32) (float32, error) {
	m.mu.Lock()
	// Copy to avoid issues with reused slices.
	inputCopy := make([]float32, len(input))
	copy(inputCopy, input)
	m.InferCalls = append(m.InferCalls, inputCopy)
	m.mu.Unlock()

	if m.InferFunc != nil {
		return m.InferFunc(input)
	}
	return 0.0, nil
}

// Reset implements Engine.
func (m *MockEngine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalled = true
	return nil
}

// Destroy implements Engine.
func (m *MockEngine) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalled = true
	return nil
}

// InferCallCount returns the number of times Infer was called.
func (m *MockEngine) InferCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InferCalls)
}

var _ Engine = (*MockEngine)(nil)
