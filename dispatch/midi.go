package dispatch

import (
	"math"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/mtc"
)

type (
	// SendFunc delivers one raw MIDI message. A nil SendFunc means MIDI
	// output is unavailable on this machine and messages are dropped.
	SendFunc func(msg midi.Message) error

	// midiTask emits Control Change messages when a CC track's sampled value
	// changes, gates Note On/Off from note tracks through per-track latches,
	// and optionally distributes timecode as MTC when this transport is the
	// master. Stop and track removal force any held note off; a latch must
	// never outlive its track.
	midiTask struct {
		broker *Broker
		clock  Transport
		send   SendFunc
		tracks []showsignal.Track

		latches    map[string]noteLatch
		lastCC     map[string]uint8
		wasRunning bool

		mtcMaster   bool
		mtcRate     mtc.Rate
		mtcEncoder  mtc.Encoder
		lastFullSec int
	}

	noteLatch struct {
		channel uint8
		key     uint8
	}
)

func newMIDITask(broker *Broker, clock Transport, send SendFunc, mtcMaster bool, rate mtc.Rate) *midiTask {
	return &midiTask{
		broker:      broker,
		clock:       clock,
		send:        send,
		latches:     make(map[string]noteLatch),
		lastCC:      make(map[string]uint8),
		mtcMaster:   mtcMaster,
		mtcRate:     rate,
		lastFullSec: -1,
	}
}

func (t *midiTask) run(interval time.Duration) {
	defer close(t.broker.FinishedMIDI)
	defer t.releaseAll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.broker.CloseMIDI:
			return
		case msg := <-t.broker.ToMIDI:
			if tracks, ok := msg.([]showsignal.Track); ok {
				t.setTracks(tracks)
			}
		case <-ticker.C:
			t.tick()
		}
	}
}

// setTracks swaps the track snapshot, releasing latches whose track is gone.
func (t *midiTask) setTracks(tracks []showsignal.Track) {
	names := make(map[string]bool, len(tracks))
	for i := range tracks {
		names[tracks[i].Name] = true
	}
	for name, latch := range t.latches {
		if !names[name] {
			t.emit(midi.NoteOff(latch.channel, latch.key))
			delete(t.latches, name)
		}
	}
	for name := range t.lastCC {
		if !names[name] {
			delete(t.lastCC, name)
		}
	}
	t.tracks = tracks
}

func (t *midiTask) tick() {
	tm, ok := t.clock.CurrentTime()
	running := ok && t.clock.IsRunning()
	if !running {
		if t.wasRunning {
			t.releaseAll()
			// a restarted show must re-announce every CC value
			clear(t.lastCC)
		}
		t.wasRunning = false
		return
	}
	t.wasRunning = true
	for i := range t.tracks {
		track := &t.tracks[i]
		if !track.Active(t.tracks) {
			continue
		}
		switch track.Kind {
		case showsignal.KindMIDICC:
			t.tickCC(track, tm)
		case showsignal.KindMIDINote:
			t.tickNote(track, tm)
		}
	}
	if t.mtcMaster {
		t.tickMTC(tm)
	}
}

func (t *midiTask) tickCC(track *showsignal.Track, tm float64) {
	value := uint8(clampInt(int(math.Round(track.SampleAt(tm))), 0, 127))
	if last, ok := t.lastCC[track.Name]; ok && last == value {
		return
	}
	t.lastCC[track.Name] = value
	t.emit(midi.ControlChange(midiChannel(track), uint8(clampInt(track.Dest.Number, 0, 127)), value))
}

// tickNote treats the sampled value as a gate: crossing 0.5 upward emits one
// Note On, crossing downward emits the matching Note Off. The latch keeps a
// held note held across ticks without re-triggering.
func (t *midiTask) tickNote(track *showsignal.Track, tm float64) {
	gate := track.SampleAt(tm) >= 0.5
	_, held := t.latches[track.Name]
	switch {
	case gate && !held:
		latch := noteLatch{channel: midiChannel(track), key: uint8(clampInt(track.Dest.Number, 0, 127))}
		t.latches[track.Name] = latch
		t.emit(midi.NoteOn(latch.channel, latch.key, 127))
	case !gate && held:
		latch := t.latches[track.Name]
		delete(t.latches, track.Name)
		t.emit(midi.NoteOff(latch.channel, latch.key))
	}
}

// tickMTC distributes the transport position: the full quarter-frame cycle
// each frame interval plus one full-frame sysex per second.
func (t *midiTask) tickMTC(tm float64) {
	tc := mtc.FromSeconds(tm, t.mtcRate)
	if sec := int(tm); sec != t.lastFullSec {
		t.lastFullSec = sec
		full := mtc.FullFrame(tc)
		t.emit(midi.SysEx(full[1 : len(full)-1]))
	}
	for i := 0; i < 8; i++ {
		qf := t.mtcEncoder.QuarterFrame(tc)
		t.emit(midi.Message(qf))
	}
}

// releaseAll forces a Note Off for every held latch, exactly once each.
func (t *midiTask) releaseAll() {
	for name, latch := range t.latches {
		t.emit(midi.NoteOff(latch.channel, latch.key))
		delete(t.latches, name)
	}
}

// emit drops messages when output is unavailable and swallows send errors;
// one refused message must not abort the loop.
func (t *midiTask) emit(msg midi.Message) {
	if t.send == nil {
		return
	}
	if err := t.send(msg); err != nil {
		TrySend(t.broker.ToHost, Alert{Name: "MIDISend", Message: err.Error(), Priority: Warning})
	}
}

func midiChannel(track *showsignal.Track) uint8 {
	return uint8(clampInt(track.Dest.Channel-1, 0, 15))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
