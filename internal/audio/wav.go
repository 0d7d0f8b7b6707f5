package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Clip is one trimmed, duration-clamped extraction from the ring: interleaved
// float32 samples plus the format needed to serialize or transcribe them.
type Clip struct {
	Samples    []float32
	Frames     int
	Channels   int
	SampleRate int
}

// Duration returns the clip length derived from frame count and sample rate.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames) / float64(c.SampleRate) * float64(time.Second))
}

// EncodeWAV serializes a clip as a 44-byte RIFF/WAVE header followed by
// little-endian PCM16 samples. Float samples are clamped to [-1, 1] and
// quantized with round(s * 32767); output is byte-for-byte reproducible.
func EncodeWAV(clip Clip) []byte {
	channels := clip.Channels
	if channels < 1 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := clip.SampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)
	dataSize := len(clip.Samples) * 2

	out := make([]byte, 44+dataSize)
	copy(out[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], []byte("WAVE"))
	copy(out[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(clip.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	for i, sample := range clip.Samples {
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(quantizePCM16(sample)))
	}
	return out
}

// quantizePCM16 clamps to [-1, 1] and rounds to a signed 16-bit value.
// Out-of-range input is clamped, never rejected.
func quantizePCM16(sample float32) int16 {
	s := float64(sample)
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(math.Round(s * 32767))
}
