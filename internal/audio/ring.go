// Package audio handles device discovery, continuous ring-buffer capture,
// and WAV serialization of extracted clips.
package audio

import (
	"errors"
	"sync"
)

var (
	// ErrDeviceUnavailable indicates no usable capture device exists.
	ErrDeviceUnavailable = errors.New("no audio capture device available")
	// ErrDeviceNotReady indicates the capture stream has not produced any frames yet.
	ErrDeviceNotReady = errors.New("audio capture device not producing frames")
)

// Ring is a fixed-capacity circular store of interleaved float32 samples.
// The write cursor always points to the next frame to be overwritten; data
// older than one full lap is invalid. Single writer, one reader at a time.
type Ring struct {
	mu         sync.Mutex
	samples    []float32
	capacity   int // frames
	channels   int
	sampleRate int
	cursor     int   // next frame to overwrite, in [0, capacity)
	total      int64 // monotonic frames written since start
}

// NewRing allocates a ring holding loopSeconds of audio at the given format.
func NewRing(sampleRate int, channels int, loopSeconds float64) *Ring {
	capacity := int(loopSeconds * float64(sampleRate))
	if capacity < 1 {
		capacity = 1
	}
	if channels < 1 {
		channels = 1
	}
	return &Ring{
		samples:    make([]float32, capacity*channels),
		capacity:   capacity,
		channels:   channels,
		sampleRate: sampleRate,
	}
}

// Capacity returns the ring size in frames.
func (r *Ring) Capacity() int { return r.capacity }

// Channels returns the interleaved channel count.
func (r *Ring) Channels() int { return r.channels }

// SampleRate returns the capture sample rate in Hz.
func (r *Ring) SampleRate() int { return r.sampleRate }

// Cursor returns the current write position in frames, modulo capacity.
func (r *Ring) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// TotalFrames returns the monotonic count of frames written since start.
func (r *Ring) TotalFrames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Write appends interleaved samples at the cursor, wrapping as needed.
// Partial trailing frames are dropped.
func (r *Ring) Write(samples []float32) {
	frames := len(samples) / r.channels
	if frames == 0 {
		return
	}
	samples = samples[:frames*r.channels]

	r.mu.Lock()
	defer r.mu.Unlock()

	for len(samples) > 0 {
		start := r.cursor * r.channels
		n := copy(r.samples[start:], samples)
		samples = samples[n:]
		written := n / r.channels
		r.cursor = (r.cursor + written) % r.capacity
		r.total += int64(written)
	}
}

// Extract returns frameCount frames starting at startFrame, concatenating the
// tail segment with the head segment when the range wraps past capacity.
// startFrame is normalized into [0, capacity); frameCount is clamped to one lap.
func (r *Ring) Extract(startFrame int, frameCount int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameCount <= 0 {
		return nil
	}
	if frameCount > r.capacity {
		frameCount = r.capacity
	}
	startFrame %= r.capacity
	if startFrame < 0 {
		startFrame += r.capacity
	}

	out := make([]float32, 0, frameCount*r.channels)
	tail := r.capacity - startFrame
	if tail > frameCount {
		tail = frameCount
	}
	out = append(out, r.samples[startFrame*r.channels:(startFrame+tail)*r.channels]...)
	if head := frameCount - tail; head > 0 {
		out = append(out, r.samples[:head*r.channels]...)
	}
	return out
}
