package dispatch

import (
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/osc"
)

type (
	// Transport is the read contract every task has on the clock: a possibly
	// absent current position and a running flag. Tasks hold rather than
	// jump when the position is absent.
	Transport interface {
		CurrentTime() (float64, bool)
		IsRunning() bool
	}

	// ControlSender sends one encoded control message to a destination.
	ControlSender interface {
		Send(host string, port int, msg osc.Message) error
	}

	// controlTask samples enabled continuous tracks every frame and sends one
	// control message per track to its configured destination. Send failures
	// are swallowed per message; a dead destination must not stall the timer.
	controlTask struct {
		broker *Broker
		clock  Transport
		sender ControlSender
		tracks []showsignal.Track
	}
)

func (t *controlTask) run(interval time.Duration) {
	defer close(t.broker.FinishedControl)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.broker.CloseControl:
			return
		case msg := <-t.broker.ToControl:
			if tracks, ok := msg.([]showsignal.Track); ok {
				t.tracks = tracks
			}
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *controlTask) tick() {
	tm, ok := t.clock.CurrentTime()
	if !ok || !t.clock.IsRunning() {
		return
	}
	for i := range t.tracks {
		track := &t.tracks[i]
		if !track.Active(t.tracks) || track.Dest.Host == "" {
			continue
		}
		var values []float64
		switch track.Kind {
		case showsignal.KindValue:
			values = []float64{track.SampleAt(tm)}
		case showsignal.KindVector:
			values = track.SampleVectorAt(tm, 3)
		default:
			continue
		}
		msg := osc.NumberMessage(track.Dest.Address, values, oscMode(track.Dest.Mode))
		if err := t.sender.Send(track.Dest.Host, track.Dest.Port, msg); err != nil {
			TrySend(t.broker.ToHost, Alert{Name: "ControlSend", Message: err.Error(), Priority: Warning})
		}
	}
}

// oscMode maps the per-track argument mode override onto the codec's tag
// choice; anything unrecognized keeps the per-element auto choice.
func oscMode(mode string) osc.Mode {
	switch mode {
	case "int":
		return osc.ModeInt
	case "float":
		return osc.ModeFloat
	}
	return osc.ModeAuto
}
