package dispatch

import (
	"math"
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/artnet"
)

type (
	// LightingSender sends one encoded lighting frame to a node.
	LightingSender interface {
		Send(host string, packet []byte) error
	}

	// lightingTask groups enabled DMX tracks by destination every frame,
	// renders each group into a 512-byte scratch buffer and sends one frame
	// per destination per tick, numbered from the per-destination sequence
	// table.
	lightingTask struct {
		broker *Broker
		clock  Transport
		sender LightingSender
		tracks []showsignal.Track

		sequences *artnet.SequenceTable
		scratch   map[artnet.DestKey]*[512]byte
	}
)

func newLightingTask(broker *Broker, clock Transport, sender LightingSender) *lightingTask {
	return &lightingTask{
		broker:    broker,
		clock:     clock,
		sender:    sender,
		sequences: artnet.NewSequenceTable(),
		scratch:   make(map[artnet.DestKey]*[512]byte),
	}
}

func (t *lightingTask) run(interval time.Duration) {
	defer close(t.broker.FinishedLighting)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.broker.CloseLighting:
			return
		case msg := <-t.broker.ToLighting:
			if tracks, ok := msg.([]showsignal.Track); ok {
				t.tracks = tracks
			}
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *lightingTask) tick() {
	tm, ok := t.clock.CurrentTime()
	if !ok || !t.clock.IsRunning() {
		return
	}
	addressed := make(map[artnet.DestKey]bool)
	for i := range t.tracks {
		track := &t.tracks[i]
		if track.Kind != showsignal.KindDMXChannel && track.Kind != showsignal.KindDMXColor {
			continue
		}
		if !track.Active(t.tracks) || track.Dest.Host == "" {
			continue
		}
		key := artnet.DestKey{Host: track.Dest.Host, Universe: track.Dest.Universe}
		buf := t.scratch[key]
		if buf == nil {
			buf = new([512]byte)
			t.scratch[key] = buf
		}
		if !addressed[key] {
			*buf = [512]byte{}
			addressed[key] = true
		}
		switch track.Kind {
		case showsignal.KindDMXChannel:
			writeChannel(buf, track.Dest.Channel, track.SampleAt(tm))
		case showsignal.KindDMXColor:
			t.writeColor(buf, track, tm)
		}
	}
	for key := range addressed {
		seq := t.sequences.Next(key)
		packet := artnet.EncodeDMX(seq, key.Universe, t.scratch[key][:])
		if err := t.sender.Send(key.Host, packet); err != nil {
			TrySend(t.broker.ToHost, Alert{Name: "LightingSend", Message: err.Error(), Priority: Warning})
		}
	}
	t.sequences.Sweep(addressed)
	for key := range t.scratch {
		if !addressed[key] {
			delete(t.scratch, key)
		}
	}
}

// writeColor resolves the track's color at tm as a two-stop gradient between
// the bracketing nodes and writes the components to the fixture's channel
// offsets: three offsets mean RGB, a fourth receives the extracted white
// component. Default offsets are 0,1,2 from the base channel.
func (t *lightingTask) writeColor(buf *[512]byte, track *showsignal.Track, tm float64) {
	a, b, frac, ok := track.NodeBracket(tm)
	if !ok {
		return
	}
	r1, g1, b1, err := showsignal.ParseColor(a.Color)
	if err != nil {
		return
	}
	r, g, bl := r1, g1, b1
	if frac > 0 {
		if r2, g2, b2, err := showsignal.ParseColor(b.Color); err == nil {
			r, g, bl = showsignal.LerpColor(r1, g1, b1, r2, g2, b2, frac)
		}
	}
	offsets := track.Dest.Offsets
	if len(offsets) == 0 {
		offsets = []int{0, 1, 2}
	}
	comps := []byte{r, g, bl}
	if len(offsets) >= 4 {
		// RGBW fixture: move the common component to the white channel
		w := min3(r, g, bl)
		comps = []byte{r - w, g - w, bl - w, w}
	}
	base := track.Dest.Channel // 1-based
	for i, off := range offsets {
		if i >= len(comps) {
			break
		}
		idx := base - 1 + off
		if idx >= 0 && idx < len(buf) {
			buf[idx] = comps[i]
		}
	}
}

// writeChannel rounds and clamps a sampled value into a 1-based DMX channel.
func writeChannel(buf *[512]byte, channel int, value float64) {
	if channel < 1 || channel > len(buf) {
		return
	}
	v := math.Round(value)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	buf[channel-1] = byte(v)
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
