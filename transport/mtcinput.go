package transport

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/luminet/showsignal/mtc"
)

// MTCInput listens to a MIDI input port and feeds quarter-frame and
// full-frame timecode into the clock. A machine without a working MIDI
// driver degrades to "no devices" instead of failing; following MTC is then
// simply unavailable.
type MTCInput struct {
	driver  *rtmididrv.Driver
	current drivers.In
	stop    func()
	clock   *Clock
}

func NewMTCInput(clock *Clock) *MTCInput {
	m := &MTCInput{clock: clock}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	m.driver, _ = rtmididrv.New()
	return m
}

// Devices lists the MIDI input port names currently available.
func (m *MTCInput) Devices() []string {
	if m.driver == nil {
		return nil
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// Open connects to the first input whose name starts with prefix, closing
// any previously open port. An empty prefix takes the first port.
func (m *MTCInput) Open(prefix string) error {
	if m.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	for _, in := range ins {
		if prefix != "" && !strings.HasPrefix(in.String(), prefix) {
			continue
		}
		m.Close()
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input failed: %w", err)
		}
		stop, err := midi.ListenTo(in, m.handleMessage, midi.UseSysEx())
		if err != nil {
			in.Close()
			return fmt.Errorf("listening to MIDI input failed: %w", err)
		}
		m.current = in
		m.stop = stop
		return nil
	}
	return fmt.Errorf("no MIDI input matching prefix %q", prefix)
}

func (m *MTCInput) handleMessage(msg midi.Message, timestampms int32) {
	var qf uint8
	if msg.GetMTC(&qf) {
		m.clock.FeedMTC(qf)
		return
	}
	var payload []byte
	if msg.GetSysEx(&payload) {
		// GetSysEx strips the F0/F7 framing; the codec validates the full
		// envelope, so restore it
		raw := make([]byte, 0, len(payload)+2)
		raw = append(raw, 0xF0)
		raw = append(raw, payload...)
		raw = append(raw, 0xF7)
		if tc, ok := mtc.DecodeFullFrame(raw); ok {
			m.clock.FeedFullFrame(tc)
		}
	}
}

// Close stops listening and releases the port. Safe to call repeatedly.
func (m *MTCInput) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	if m.current != nil && m.current.IsOpen() {
		m.current.Close()
	}
	m.current = nil
}

// Shutdown closes the port and the driver itself.
func (m *MTCInput) Shutdown() {
	m.Close()
	if m.driver != nil {
		m.driver.Close()
	}
}
