package dispatch

import (
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/mtc"
)

type (
	// Dispatcher owns the three protocol tasks. Each runs its own periodic
	// timer at the project frame rate (floored at 4 ms) with its own
	// close/finished pair, so stopping one protocol can never leave another
	// protocol's universe, note or socket dangling.
	Dispatcher struct {
		broker *Broker

		control  *controlTask
		lighting *lightingTask
		midi     *midiTask

		interval time.Duration
		running  bool
	}

	// Config carries everything the tasks need beyond the broker and clock.
	Config struct {
		FrameInterval  float64 // seconds; floored at 4 ms
		ControlSender  ControlSender
		LightingSender LightingSender
		MIDISend       SendFunc
		MTCMaster      bool
		MTCRate        mtc.Rate
	}
)

const minInterval = 4 * time.Millisecond

func NewDispatcher(broker *Broker, clock Transport, cfg Config) *Dispatcher {
	interval := time.Duration(cfg.FrameInterval * float64(time.Second))
	if interval < minInterval {
		interval = minInterval
	}
	return &Dispatcher{
		broker:   broker,
		control:  &controlTask{broker: broker, clock: clock, sender: cfg.ControlSender},
		lighting: newLightingTask(broker, clock, cfg.LightingSender),
		midi:     newMIDITask(broker, clock, cfg.MIDISend, cfg.MTCMaster, cfg.MTCRate),
		interval: interval,
	}
}

// Start launches the three task goroutines. Tracks arrive via SetTracks.
func (d *Dispatcher) Start() {
	if d.running {
		return
	}
	d.running = true
	go d.control.run(d.interval)
	go d.lighting.run(d.interval)
	go d.midi.run(d.interval)
}

// SetTracks hands every task a fresh immutable snapshot of the tracks. The
// tasks each filter the kinds they care about; the MIDI task additionally
// releases latches for removed tracks.
func (d *Dispatcher) SetTracks(tracks []showsignal.Track) {
	snapshot := make([]showsignal.Track, len(tracks))
	for i := range tracks {
		snapshot[i] = tracks[i].Copy()
	}
	TrySend(d.broker.ToControl, any(snapshot))
	TrySend(d.broker.ToLighting, any(snapshot))
	TrySend(d.broker.ToMIDI, any(snapshot))
}

// Stop synchronously idles all three timers and waits for each task to
// finish its teardown, bounded so a wedged task cannot hang the host. The
// MIDI task sends its forced note-offs on the way out.
func (d *Dispatcher) Stop() {
	if !d.running {
		return
	}
	d.running = false
	TrySend(d.broker.CloseControl, struct{}{})
	TrySend(d.broker.CloseLighting, struct{}{})
	TrySend(d.broker.CloseMIDI, struct{}{})
	const teardownTimeout = 3 * time.Second
	TimeoutReceive(d.broker.FinishedControl, teardownTimeout)
	TimeoutReceive(d.broker.FinishedLighting, teardownTimeout)
	TimeoutReceive(d.broker.FinishedMIDI, teardownTimeout)
}
