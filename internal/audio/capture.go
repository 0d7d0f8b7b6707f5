package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Capture owns one continuously recording Pulse stream feeding a Ring.
// The stream never stops between utterances; sessions only read cursors
// and extract ranges.
type Capture struct {
	device Device
	ring   *Ring

	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	rest    []byte // undecoded trailing bytes from the last Pulse write
	stopped bool
}

// StartCapture creates and starts a float32 record stream writing into a
// ring of loopSeconds length. Wrap ErrDeviceUnavailable when no device or
// server can be reached so callers can keep capture inactive without failing.
func StartCapture(ctx context.Context, selected Device, sampleRate int, channels int, loopSeconds float64) (*Capture, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("drover"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", ErrDeviceUnavailable, err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", ErrDeviceUnavailable, selected.ID, err)
	}

	capture := &Capture{
		device: selected,
		ring:   NewRing(sampleRate, channels, loopSeconds),
	}
	capture.client = client

	opts := []pulse.RecordOption{
		pulse.RecordSource(source),
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("drover voice loop"),
	}
	if channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatFloat32LE)
	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Ring exposes the backing ring for cursor reads and extraction.
func (c *Capture) Ring() *Ring {
	return c.ring
}

// WaitReady polls until the stream has produced at least one frame, failing
// with ErrDeviceNotReady after attempts polls.
func (c *Capture) WaitReady(attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if c.ring.TotalFrames() > 0 {
			return nil
		}
		time.Sleep(interval)
	}
	return ErrDeviceNotReady
}

// Stop halts the stream and releases the Pulse connection; idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM decodes raw little-endian float32 bytes from Pulse and writes whole
// frames into the ring. Trailing partial frames carry over to the next call
// so a multi-channel stream never loses interleave alignment across writes.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// raw must not share backing with c.rest: the carry below rewrites
	// c.rest in place while raw is still pending decode.
	raw := make([]byte, 0, len(c.rest)+len(buffer))
	raw = append(raw, c.rest...)
	raw = append(raw, buffer...)
	bytesPerFrame := 4 * c.ring.Channels()
	n := len(raw) / bytesPerFrame * bytesPerFrame
	c.rest = append(c.rest[:0], raw[n:]...)
	c.mu.Unlock()

	samples := make([]float32, n/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	c.ring.Write(samples)

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
