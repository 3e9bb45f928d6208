package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDIOut wraps one MIDI output port behind a capability check: on machines
// without a usable driver it simply reports unavailable and every send is a
// no-op, so the MIDI task runs the same everywhere.
type MIDIOut struct {
	driver *rtmididrv.Driver
	out    drivers.Out
	send   func(msg midi.Message) error
}

func NewMIDIOut() *MIDIOut {
	m := &MIDIOut{}
	// a nil driver just means MIDI output is unavailable here
	m.driver, _ = rtmididrv.New()
	return m
}

// Devices lists the MIDI output port names currently available.
func (m *MIDIOut) Devices() []string {
	if m.driver == nil {
		return nil
	}
	outs, err := m.driver.Outs()
	if err != nil {
		return nil
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// Open connects to the first output whose name starts with prefix; an empty
// prefix takes the first port.
func (m *MIDIOut) Open(prefix string) error {
	if m.driver == nil {
		return errors.New("no MIDI driver available")
	}
	outs, err := m.driver.Outs()
	if err != nil {
		return fmt.Errorf("listing MIDI outputs failed: %w", err)
	}
	for _, out := range outs {
		if prefix != "" && !strings.HasPrefix(out.String(), prefix) {
			continue
		}
		m.Close()
		if err := out.Open(); err != nil {
			return fmt.Errorf("opening MIDI output failed: %w", err)
		}
		send, err := midi.SendTo(out)
		if err != nil {
			out.Close()
			return fmt.Errorf("preparing MIDI output failed: %w", err)
		}
		m.out = out
		m.send = send
		return nil
	}
	return fmt.Errorf("no MIDI output matching prefix %q", prefix)
}

// Available reports whether sends will actually reach a port.
func (m *MIDIOut) Available() bool {
	return m.send != nil
}

// Send delivers one message, or drops it when no port is open.
func (m *MIDIOut) Send(msg midi.Message) error {
	if m.send == nil {
		return nil
	}
	return m.send(msg)
}

// Close releases the port but keeps the driver for a later Open.
func (m *MIDIOut) Close() {
	if m.out != nil && m.out.IsOpen() {
		m.out.Close()
	}
	m.out = nil
	m.send = nil
}

// Shutdown closes the port and the driver itself.
func (m *MIDIOut) Shutdown() {
	m.Close()
	if m.driver != nil {
		m.driver.Close()
	}
}
