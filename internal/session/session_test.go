package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drover/internal/audio"
)

// testRing returns a 1-second, 100 Hz mono ring so durations translate to
// frame counts without rounding surprises.
func testRing() *audio.Ring {
	return audio.NewRing(100, 1, 1.0)
}

func fillFrames(ring *audio.Ring, n int, base float32) {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = base + float32(i)
	}
	ring.Write(samples)
}

func TestBeginRequiresFrames(t *testing.T) {
	t.Parallel()

	var rec Recording
	require.ErrorIs(t, rec.Begin(testRing(), 0), audio.ErrDeviceNotReady)
	require.ErrorIs(t, rec.Begin(nil, 0), audio.ErrDeviceNotReady)
	require.False(t, rec.Active())
}

func TestBeginRejectsSecondPress(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 10, 0)

	var rec Recording
	require.NoError(t, rec.Begin(ring, 0))
	require.True(t, rec.Active())
	require.ErrorIs(t, rec.Begin(ring, 0), ErrSessionActive)
}

func TestEndWithoutBegin(t *testing.T) {
	t.Parallel()

	var rec Recording
	_, ok, err := rec.End(testRing(), time.Second, 0)
	require.ErrorIs(t, err, ErrNoActiveSession)
	require.False(t, ok)
}

func TestPreRollExtendsClipBackward(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 30, 0) // cursor at 30

	var rec Recording
	require.NoError(t, rec.Begin(ring, 50*time.Millisecond)) // 5 frames back

	clip, ok, err := rec.End(ring, time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, clip.Frames)
	require.Equal(t, []float32{25, 26, 27, 28, 29}, clip.Samples)
	require.Equal(t, 100, clip.SampleRate)
	require.Equal(t, 1, clip.Channels)
}

func TestPreRollWrapsAroundRingStart(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 100, 0)   // one full lap, cursor back at 0
	fillFrames(ring, 3, 1000)  // cursor at 3

	var rec Recording
	require.NoError(t, rec.Begin(ring, 50*time.Millisecond)) // start at 98

	clip, ok, err := rec.End(ring, time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, clip.Frames)
	require.Equal(t, []float32{98, 99, 1000, 1001, 1002}, clip.Samples)
}

func TestEndClampsToMaxDuration(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 10, 0)

	var rec Recording
	require.NoError(t, rec.Begin(ring, 0)) // start at 10
	fillFrames(ring, 80, 100)              // cursor at 90

	clip, ok, err := rec.End(ring, 500*time.Millisecond, 0) // clamp to 50 frames
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 50, clip.Frames)
	require.Equal(t, float32(100), clip.Samples[0])
	require.Equal(t, float32(149), clip.Samples[49])
}

func TestEndDiscardsBelowMinimum(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 10, 0)

	var rec Recording
	require.NoError(t, rec.Begin(ring, 0))
	fillFrames(ring, 5, 0)

	clip, ok, err := rec.End(ring, time.Second, 100*time.Millisecond) // min 10 frames
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, clip.Samples)
	require.False(t, rec.Active())
}

func TestEndDiscardsZeroSpan(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 10, 0)

	var rec Recording
	require.NoError(t, rec.Begin(ring, 0))

	_, ok, err := rec.End(ring, time.Second, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEndAlwaysClearsState(t *testing.T) {
	t.Parallel()

	ring := testRing()
	fillFrames(ring, 20, 0)

	var rec Recording
	require.NoError(t, rec.Begin(ring, 0))
	fillFrames(ring, 20, 0)

	_, ok, err := rec.End(ring, time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, rec.Active())

	_, _, err = rec.End(ring, time.Second, 0)
	require.ErrorIs(t, err, ErrNoActiveSession)
}
