// Package session coordinates the press-to-release capture lifecycle and the
// async transcription/resolution flow that follows each release.
package session

import (
	"errors"
	"math"
	"time"

	"drover/internal/audio"
)

var (
	// ErrSessionActive indicates a press arrived while a recording is already
	// in flight. A second press never overwrites an in-flight start cursor.
	ErrSessionActive = errors.New("recording session already active")
	// ErrNoActiveSession indicates a release arrived without a matching press.
	ErrNoActiveSession = errors.New("no active recording session")
)

// Recording tracks one press-to-release interval against the capture ring:
// the pre-roll-adjusted start cursor and the press timestamp. A value is
// created on press and consumed on release; it never outlives the gesture.
type Recording struct {
	startCursor int
	startedAt   time.Time
	active      bool
}

// Active reports whether a press is currently in flight.
func (r *Recording) Active() bool {
	return r.active
}

// StartedAt returns the press timestamp of the active session.
func (r *Recording) StartedAt() time.Time {
	return r.startedAt
}

// Begin marks the session active at the current write cursor backed off by
// preRoll, so the first syllable before the key actually landed still makes
// it into the clip. Fails when capture has not produced any frames yet.
func (r *Recording) Begin(ring *audio.Ring, preRoll time.Duration) error {
	if r.active {
		return ErrSessionActive
	}
	if ring == nil || ring.TotalFrames() == 0 {
		return audio.ErrDeviceNotReady
	}

	preRollFrames := int(math.Round(preRoll.Seconds() * float64(ring.SampleRate())))
	if preRollFrames < 0 {
		preRollFrames = 0
	}
	if preRollFrames > ring.Capacity()-1 {
		preRollFrames = ring.Capacity() - 1
	}

	capacity := ring.Capacity()
	r.startCursor = ((ring.Cursor()-preRollFrames)%capacity + capacity) % capacity
	r.startedAt = time.Now()
	r.active = true
	return nil
}

// End consumes the session: it computes the recorded frame span modulo
// capacity, clamps it to maxDur, and extracts the clip. Spans shorter than
// minDur yield no clip; that is a normal outcome, not an error. Session
// state is cleared on every path.
func (r *Recording) End(ring *audio.Ring, maxDur time.Duration, minDur time.Duration) (audio.Clip, bool, error) {
	defer func() {
		r.active = false
		r.startCursor = 0
		r.startedAt = time.Time{}
	}()

	if !r.active {
		return audio.Clip{}, false, ErrNoActiveSession
	}
	if ring == nil {
		return audio.Clip{}, false, audio.ErrDeviceNotReady
	}

	capacity := ring.Capacity()
	rate := float64(ring.SampleRate())

	frames := ((ring.Cursor()-r.startCursor)%capacity + capacity) % capacity
	if maxFrames := int(math.Round(maxDur.Seconds() * rate)); maxFrames > 0 && frames > maxFrames {
		frames = maxFrames
	}
	if minFrames := int(math.Round(minDur.Seconds() * rate)); frames < minFrames {
		return audio.Clip{}, false, nil
	}
	if frames == 0 {
		return audio.Clip{}, false, nil
	}

	clip := audio.Clip{
		Samples:    ring.Extract(r.startCursor, frames),
		Frames:     frames,
		Channels:   ring.Channels(),
		SampleRate: ring.SampleRate(),
	}
	return clip, true, nil
}
