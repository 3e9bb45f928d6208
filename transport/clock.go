// Package transport produces the one authoritative show time from a chosen
// timing source: the free-running internal clock, a MIDI Time Code follower
// smoothed by a phase-locked loop, or a longitudinal-timecode follower that
// applies decoded frames directly. Consumers read immutable snapshots; only
// the coordinator mutates state.
package transport

import (
	"sync"
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/ltc"
	"github.com/luminet/showsignal/mtc"
)

type (
	// PLL is the phase/frequency estimate of the MTC follower. Phase is the
	// smoothed show time in seconds; Freq is the estimated ratio of external
	// clock speed to wall-clock speed.
	PLL struct {
		Locked     bool
		Phase      float64
		Freq       float64
		LastUpdate time.Time
	}

	// State is a read-only snapshot of the transport.
	State struct {
		Time    float64
		Valid   bool // false: no trustworthy position, consumers hold
		Playing bool
		Source  showsignal.SyncSource
		PLL     PLL
	}

	// Clock owns the transport state. Followers feed it decoded samples;
	// Advance runs from the host's per-frame callback and refreshes the
	// cached current time, so reads between frames are mildly stale by
	// design.
	Clock struct {
		mu     sync.Mutex
		source showsignal.SyncSource
		length float64 // project length; internal source auto-stops here

		playing bool
		current float64
		valid   bool

		// internal source anchor, reset on every play/seek/cue jump
		anchorPlayhead float64
		anchorWall     time.Time

		pll              PLL
		mtcDecoder       mtc.QuarterFrameDecoder
		mtcFrameInterval float64

		ltcAt time.Time

		now func() time.Time
	}
)

// MTC follower tuning. The loop nudges phase and frequency toward each
// decoded sample; errors above acquireThreshold double both gains, errors
// above rejectThreshold abandon smoothing and snap.
const (
	pllKp            = 0.22
	pllKi            = 0.012
	acquireThreshold = 0.4
	rejectThreshold  = 1.5
	freqMin          = 0.95
	freqMax          = 1.05

	mtcWatchdogMin = 450 * time.Millisecond
)

func NewClock(length float64) *Clock {
	return &Clock{
		length:           length,
		valid:            true, // internal source always has a position
		mtcFrameInterval: 1.0 / 30,
		now:              time.Now,
	}
}

// SetSource switches the timing source. All follower state resets; the new
// source starts unlocked and paused until it proves itself.
func (c *Clock) SetSource(src showsignal.SyncSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src == c.source {
		return
	}
	c.source = src
	c.playing = false
	c.valid = src == showsignal.SyncInternal
	c.resetFollowers()
}

// resetFollowers clears PLL and LTC state; callers hold the mutex.
func (c *Clock) resetFollowers() {
	c.pll = PLL{}
	c.mtcDecoder = mtc.QuarterFrameDecoder{}
	c.ltcAt = time.Time{}
}

// Play starts the internal clock from the given position. In follower modes
// position comes from the external source, so Play only matters internally.
func (c *Clock) Play(at float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != showsignal.SyncInternal {
		return
	}
	c.anchorPlayhead = at
	c.anchorWall = c.now()
	c.current = at
	c.valid = true
	c.playing = true
}

// Pause stops the transport and, per the stop contract, unlocks followers.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.anchorPlayhead = c.current
	if c.source != showsignal.SyncInternal {
		c.valid = false
	}
	c.resetFollowers()
}

// Seek jumps the internal clock, re-anchoring so a running transport
// continues from the new position.
func (c *Clock) Seek(at float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != showsignal.SyncInternal {
		return
	}
	c.anchorPlayhead = at
	c.anchorWall = c.now()
	c.current = at
	c.valid = true
}

// FeedMTC consumes one quarter-frame data byte from the MIDI input. A
// completed group updates the PLL: hard reset when unlocked or when the
// sample disagrees with the prediction beyond the reject threshold,
// otherwise a proportional/integral nudge toward the sample.
func (c *Clock) FeedMTC(data byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != showsignal.SyncMTC {
		return
	}
	tc, ok := c.mtcDecoder.Feed(data)
	if !ok {
		return
	}
	c.applyMTCSample(tc)
}

// FeedFullFrame applies a decoded full-frame sysex position. It updates the
// PLL exactly like a completed quarter-frame group.
func (c *Clock) FeedFullFrame(tc mtc.Timecode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != showsignal.SyncMTC {
		return
	}
	c.applyMTCSample(tc)
}

// applyMTCSample runs one PLL iteration; callers hold the mutex.
func (c *Clock) applyMTCSample(tc mtc.Timecode) {
	sample := tc.TimeSeconds()
	now := c.now()
	c.mtcFrameInterval = 1 / tc.Rate.FPS()

	if !c.pll.Locked {
		c.pll = PLL{Locked: true, Phase: sample, Freq: 1, LastUpdate: now}
	} else {
		dt := now.Sub(c.pll.LastUpdate).Seconds()
		predicted := c.pll.Phase + c.pll.Freq*dt
		err := sample - predicted
		if err > rejectThreshold || err < -rejectThreshold {
			c.pll = PLL{Locked: true, Phase: sample, Freq: 1, LastUpdate: now}
		} else {
			kp, ki := pllKp, pllKi
			if err > acquireThreshold || err < -acquireThreshold {
				kp, ki = 2*kp, 2*ki
			}
			c.pll.Phase = predicted + kp*err
			c.pll.Freq += ki * err
			if c.pll.Freq < freqMin {
				c.pll.Freq = freqMin
			}
			if c.pll.Freq > freqMax {
				c.pll.Freq = freqMax
			}
			c.pll.LastUpdate = now
		}
	}
	c.playing = true
	c.current = c.pll.Phase
	c.valid = true
}

// FeedLTC applies one decoded longitudinal-timecode frame. No filtering; the
// external decoder's output is the position.
func (c *Clock) FeedLTC(frame ltc.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != showsignal.SyncLTC {
		return
	}
	c.current = frame.Seconds
	c.valid = true
	c.playing = true
	at := frame.At
	if at.IsZero() {
		at = c.now()
	}
	c.ltcAt = at
}

// Advance refreshes the cached transport time and runs the follower
// watchdogs. The host calls it from its per-frame redraw callback.
func (c *Clock) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	switch c.source {
	case showsignal.SyncInternal:
		if !c.playing {
			return
		}
		c.current = c.anchorPlayhead + now.Sub(c.anchorWall).Seconds()
		if c.length > 0 && c.current >= c.length {
			c.current = c.length
			c.anchorPlayhead = c.length
			c.playing = false
		}
	case showsignal.SyncMTC:
		if !c.pll.Locked {
			return
		}
		watchdog := time.Duration(2 * c.mtcFrameInterval * float64(time.Second))
		if watchdog < mtcWatchdogMin {
			watchdog = mtcWatchdogMin
		}
		if now.Sub(c.pll.LastUpdate) > watchdog {
			// external clock lost
			c.pll.Locked = false
			c.playing = false
			c.valid = false
			return
		}
		c.current = c.pll.Phase + c.pll.Freq*now.Sub(c.pll.LastUpdate).Seconds()
	case showsignal.SyncLTC:
		if c.ltcAt.IsZero() {
			return
		}
		if now.Sub(c.ltcAt) > ltc.DropoutTimeout {
			c.playing = false
			c.valid = false
			c.ltcAt = time.Time{}
		}
	}
}

// CurrentTime returns the cached transport position. ok is false when the
// active source has no trustworthy position; consumers must hold rather than
// jump.
func (c *Clock) CurrentTime() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.valid
}

func (c *Clock) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Snapshot returns a copy of the full transport state.
func (c *Clock) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Time:    c.current,
		Valid:   c.valid,
		Playing: c.playing,
		Source:  c.source,
		PLL:     c.pll,
	}
}
