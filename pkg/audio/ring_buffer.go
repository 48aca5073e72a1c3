package audio

import "sync"

// RingBuffer is a fixed-size circular buffer of float32 samples. It holds
// the most recent audio: the server keeps a short window of history and
// reports its peak level when the detector fires.
type RingBuffer struct {
	data     []float32
	capacity int
	writePos int
	size     int
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer holding durationMs of mono audio at
// sampleRate.
func NewRingBuffer(sampleRate, durationMs int) *RingBuffer {
	capacity := sampleRate * durationMs / 1000
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		data:     make([]float32, capacity),
		capacity: capacity,
	}
}

// Write appends samples to the buffer. When full, the oldest samples are
// overwritten.
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(samples)
	if n == 0 {
		return
	}

	// Incoming data larger than capacity: keep only the tail.
	if n >= rb.capacity {
		copy(rb.data, samples[n-rb.capacity:])
		rb.writePos = 0
		rb.size = rb.capacity
		return
	}

	spaceToEnd := rb.capacity - rb.writePos
	if n <= spaceToEnd {
		copy(rb.data[rb.writePos:], samples)
		rb.writePos += n
		if rb.writePos == rb.capacity {
			rb.writePos = 0
		}
	} else {
		copy(rb.data[rb.writePos:], samples[:spaceToEnd])
		copy(rb.data[0:], samples[spaceToEnd:])
		rb.writePos = n - spaceToEnd
	}

	rb.size += n
	if rb.size > rb.capacity {
		rb.size = rb.capacity
	}
}

// ReadAll returns the buffered samples in chronological order without
// modifying the buffer state.
func (rb *RingBuffer) ReadAll() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	result := make([]float32, rb.size)
	if rb.size < rb.capacity {
		copy(result, rb.data[:rb.size])
	} else {
		firstPart := rb.capacity - rb.writePos
		copy(result[:firstPart], rb.data[rb.writePos:])
		copy(result[firstPart:], rb.data[:rb.writePos])
	}
	return result
}

// Clear resets the buffer to the empty state.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.size = 0
}

// Size returns the number of buffered samples.
func (rb *RingBuffer) Size() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Capacity returns the total capacity in samples.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}
