package output

import (
	"encoding/binary"
	"math"
	"sync"
)

// ringStream is the Stream shared by callback-driven backends. The mixer writes
// into the ring buffer; the backend's callback pulls bytes out of it.
type ringStream struct {
	format  Format
	ring    *RingBuffer
	scratch []float32
	pull    []float32

	mu      sync.Mutex
	closed  bool
	onClose func() error
}

func newRingStream(format Format, bufferFrames int, onClose func() error) *ringStream {
	return &ringStream{
		format:  format,
		ring:    NewRingBuffer(bufferFrames * format.Channels),
		onClose: onClose,
	}
}

func (s *ringStream) Format() Format {
	return s.format
}

func (s *ringStream) Free() int {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0
	}
	return s.ring.Free() / s.format.Channels
}

func (s *ringStream) Write(frames [][2]float64) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStreamClosed
	}
	s.mu.Unlock()

	s.scratch = interleave(s.scratch, frames, s.format.Channels)
	written := s.ring.Write(s.scratch)
	return written / s.format.Channels, nil
}

// fill renders queued samples into out as float32 little-endian bytes.
// Called from the backend's audio callback.
func (s *ringStream) fill(out []byte) {
	n := len(out) / 4
	if cap(s.pull) < n {
		s.pull = make([]float32, n)
	}
	samples := s.pull[:n]
	s.ring.Read(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
}

func (s *ringStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}
