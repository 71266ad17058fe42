package output

import (
	"sync"
)

// RingBuffer is a thread-safe circular buffer of interleaved float32 samples.
// The mixing goroutine writes; the device callback reads.
type RingBuffer struct {
	buffer   []float32
	readPos  int
	writePos int
	size     int
	count    int
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with the given capacity in samples
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]float32, capacity),
		size:   capacity,
	}
}

// Write adds samples and returns how many fit
func (rb *RingBuffer) Write(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read fills samples, zero-filling on underrun, and returns how many were real
func (rb *RingBuffer) Read(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}
	return read
}

// Available returns the number of samples waiting to be read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of samples that can still be written
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// interleave converts stereo frames to float32 samples for the given channel count
func interleave(dst []float32, frames [][2]float64, channels int) []float32 {
	dst = dst[:0]
	for _, f := range frames {
		switch channels {
		case 1:
			dst = append(dst, float32((f[0]+f[1])/2))
		default:
			dst = append(dst, float32(f[0]), float32(f[1]))
			for c := 2; c < channels; c++ {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}
