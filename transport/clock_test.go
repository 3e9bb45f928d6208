package transport

import (
	"math"
	"testing"
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/ltc"
	"github.com/luminet/showsignal/mtc"
)

// fakeNow gives tests a hand-cranked wall clock.
type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time       { return f.t }
func (f *fakeNow) step(d time.Duration) { f.t = f.t.Add(d) }

func newTestClock(length float64) (*Clock, *fakeNow) {
	f := &fakeNow{t: time.Unix(1000, 0)}
	c := NewClock(length)
	c.now = f.now
	return c, f
}

func TestInternalClock(t *testing.T) {
	c, f := newTestClock(60)
	if got, ok := c.CurrentTime(); !ok || got != 0 {
		t.Errorf("fresh clock: got %v, %v", got, ok)
	}
	c.Play(5)
	f.step(2 * time.Second)
	c.Advance()
	if got, _ := c.CurrentTime(); math.Abs(got-7) > 1e-9 {
		t.Errorf("after 2s of playback from 5: got %v", got)
	}
	c.Pause()
	f.step(time.Second)
	c.Advance()
	if got, _ := c.CurrentTime(); math.Abs(got-7) > 1e-9 {
		t.Errorf("paused clock should hold, got %v", got)
	}
	c.Seek(59)
	c.Play(59)
	f.step(5 * time.Second)
	c.Advance()
	if got, _ := c.CurrentTime(); got != 60 {
		t.Errorf("should auto-stop at project length, got %v", got)
	}
	if c.IsRunning() {
		t.Error("transport should have stopped at project length")
	}
}

func TestMTCLockAndConvergence(t *testing.T) {
	c, f := newTestClock(0)
	c.SetSource(showsignal.SyncMTC)
	if _, ok := c.CurrentTime(); ok {
		t.Error("unlocked MTC follower should have no position")
	}

	sample := func(sec float64) { c.FeedFullFrame(mtc.FromSeconds(sec, mtc.Rate30)) }

	// first sample hard-resets to the sample
	sample(10)
	st := c.Snapshot()
	if !st.PLL.Locked || st.PLL.Freq != 1 {
		t.Fatalf("first sample should lock with freq 1, got %+v", st.PLL)
	}
	base := st.PLL.Phase

	// steady samples keep the error tiny
	for i := 1; i <= 30; i++ {
		f.step(time.Second / 30)
		sample(base + float64(i)/30)
	}
	st = c.Snapshot()
	if math.Abs(st.PLL.Phase-(base+1)) > 0.01 {
		t.Fatalf("steady input should track closely, phase %v, want ~%v", st.PLL.Phase, base+1)
	}

	// a 1.0 s jump while locked: smoothed output moves by less than the jump
	prevPhase := st.PLL.Phase
	f.step(time.Second / 30)
	predicted := prevPhase + st.PLL.Freq/30
	sample(predicted + 1.0)
	st = c.Snapshot()
	moved := st.PLL.Phase - predicted
	if moved <= 0 || moved >= 1.0 {
		t.Errorf("smoothed output should move toward but less than the jump; moved %v", moved)
	}

	// beyond the reject threshold the follower snaps
	f.step(time.Second / 30)
	target := st.PLL.Phase + 5
	sample(target)
	st = c.Snapshot()
	snapped := mtc.FromSeconds(target, mtc.Rate30).TimeSeconds()
	if math.Abs(st.PLL.Phase-snapped) > 1e-9 || st.PLL.Freq != 1 {
		t.Errorf("reject threshold should snap: phase %v, want %v, freq %v", st.PLL.Phase, snapped, st.PLL.Freq)
	}
}

func TestMTCFrequencyClamp(t *testing.T) {
	c, f := newTestClock(0)
	c.SetSource(showsignal.SyncMTC)
	c.FeedFullFrame(mtc.FromSeconds(0, mtc.Rate25))
	// external clock running persistently fast: freq must stay clamped
	for i := 1; i < 200; i++ {
		f.step(time.Second / 25)
		c.FeedFullFrame(mtc.FromSeconds(float64(i)*1.2/25, mtc.Rate25))
	}
	st := c.Snapshot()
	if st.PLL.Freq > freqMax+1e-9 || st.PLL.Freq < freqMin-1e-9 {
		t.Errorf("frequency out of clamp range: %v", st.PLL.Freq)
	}
}

func TestMTCWatchdog(t *testing.T) {
	c, f := newTestClock(0)
	c.SetSource(showsignal.SyncMTC)
	c.FeedFullFrame(mtc.FromSeconds(5, mtc.Rate30))
	if !c.IsRunning() {
		t.Fatal("locked follower should report running")
	}
	f.step(100 * time.Millisecond)
	c.Advance()
	if !c.IsRunning() {
		t.Fatal("watchdog must tolerate at least 450 ms without samples")
	}
	f.step(500 * time.Millisecond)
	c.Advance()
	if c.IsRunning() {
		t.Error("watchdog should pause the transport when the external clock is lost")
	}
	if st := c.Snapshot(); st.PLL.Locked {
		t.Error("watchdog should unlock the PLL")
	}
	if _, ok := c.CurrentTime(); ok {
		t.Error("consumers should see no position after dropout")
	}
}

func TestQuarterFramePathDrivesPLL(t *testing.T) {
	c, _ := newTestClock(0)
	c.SetSource(showsignal.SyncMTC)
	var enc mtc.Encoder
	tc := mtc.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4, Rate: mtc.Rate30}
	for i := 0; i < 8; i++ {
		c.FeedMTC(enc.QuarterFrame(tc)[1])
	}
	want := 1*3600.0 + 2*60 + 3 + (4+2)/30.0
	if got, ok := c.CurrentTime(); !ok || math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, %v, want %v", got, ok, want)
	}
}

func TestLTCFollower(t *testing.T) {
	c, f := newTestClock(0)
	c.SetSource(showsignal.SyncLTC)
	if _, ok := c.CurrentTime(); ok {
		t.Error("LTC follower with no frames should have no position")
	}
	c.FeedLTC(ltc.Frame{Seconds: 42.5, At: f.t})
	if got, ok := c.CurrentTime(); !ok || got != 42.5 {
		t.Errorf("got %v, %v", got, ok)
	}
	f.step(300 * time.Millisecond)
	c.Advance()
	if !c.IsRunning() {
		t.Fatal("300 ms gap is within the dropout window")
	}
	f.step(300 * time.Millisecond)
	c.Advance()
	if c.IsRunning() {
		t.Error("transport should pause after the 500 ms dropout window")
	}
}

func TestSourceSwitchResetsFollowers(t *testing.T) {
	c, _ := newTestClock(0)
	c.SetSource(showsignal.SyncMTC)
	c.FeedFullFrame(mtc.FromSeconds(5, mtc.Rate30))
	c.SetSource(showsignal.SyncLTC)
	if st := c.Snapshot(); st.PLL.Locked || st.Playing {
		t.Errorf("switching source should reset follower state, got %+v", st)
	}
	c.SetSource(showsignal.SyncMTC)
	if st := c.Snapshot(); st.PLL.Locked {
		t.Error("PLL should start unlocked after switching back")
	}
}
