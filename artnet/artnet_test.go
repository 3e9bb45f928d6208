package artnet_test

import (
	"bytes"
	"testing"

	"github.com/luminet/showsignal/artnet"
)

func TestEncodeDMXHeader(t *testing.T) {
	channels := make([]byte, 3)
	channels[0], channels[1], channels[2] = 255, 128, 1
	packet := artnet.EncodeDMX(7, 2, channels)
	if len(packet) != 18+512 {
		t.Fatalf("packet length: got %d, want %d", len(packet), 18+512)
	}
	if string(packet[0:8]) != "Art-Net\x00" {
		t.Errorf("bad magic: % x", packet[0:8])
	}
	if packet[8] != 0x00 || packet[9] != 0x50 {
		t.Errorf("bad opcode: % x", packet[8:10])
	}
	if packet[10] != 0x00 || packet[11] != 14 {
		t.Errorf("bad protocol version: % x", packet[10:12])
	}
	if packet[12] != 7 {
		t.Errorf("sequence: got %d, want 7", packet[12])
	}
	if packet[14] != 2 || packet[15] != 0 {
		t.Errorf("universe bytes: % x", packet[14:16])
	}
	if packet[16] != 0x02 || packet[17] != 0x00 { // 512 big endian
		t.Errorf("length bytes: % x", packet[16:18])
	}
	if packet[18] != 255 || packet[19] != 128 || packet[20] != 1 {
		t.Errorf("channel data: % x", packet[18:21])
	}
	for i := 21; i < len(packet); i++ {
		if packet[i] != 0 {
			t.Fatalf("unsupplied channel %d not zero", i-18)
		}
	}
}

func TestEncodeDMXDeterministic(t *testing.T) {
	channels := []byte{1, 2, 3, 4}
	a := artnet.EncodeDMX(10, 0, channels)
	b := artnet.EncodeDMX(10, 0, channels)
	if !bytes.Equal(a, b) {
		t.Error("same inputs should be byte-identical")
	}
	c := artnet.EncodeDMX(11, 0, channels)
	diff := 0
	for i := range a {
		if a[i] != c[i] {
			diff++
			if i != 12 {
				t.Errorf("unexpected difference at byte %d", i)
			}
		}
	}
	if diff != 1 {
		t.Errorf("expected exactly the sequence byte to change, %d bytes differ", diff)
	}
}

func TestEncodeDMXUniverseClamp(t *testing.T) {
	packet := artnet.EncodeDMX(0, 100000, nil)
	if packet[14] != 0xFF || packet[15] != 0x7F {
		t.Errorf("universe should clamp to 0x7FFF, got % x", packet[14:16])
	}
	packet = artnet.EncodeDMX(0, -5, nil)
	if packet[14] != 0 || packet[15] != 0 {
		t.Errorf("negative universe should clamp to 0, got % x", packet[14:16])
	}
}

func TestSequenceTable(t *testing.T) {
	tab := artnet.NewSequenceTable()
	a := artnet.DestKey{Host: "10.0.0.2", Universe: 0}
	b := artnet.DestKey{Host: "10.0.0.2", Universe: 1}
	if got := tab.Next(a); got != 0 {
		t.Errorf("first sequence: got %d, want 0", got)
	}
	if got := tab.Next(a); got != 1 {
		t.Errorf("second sequence: got %d, want 1", got)
	}
	if got := tab.Next(b); got != 0 {
		t.Errorf("independent destination should start at 0, got %d", got)
	}
	for i := 0; i < 254; i++ {
		tab.Next(a)
	}
	if got := tab.Next(a); got != 0 {
		t.Errorf("sequence should wrap 255 -> 0, got %d", got)
	}
}

func TestSequenceSweep(t *testing.T) {
	tab := artnet.NewSequenceTable()
	a := artnet.DestKey{Host: "10.0.0.2", Universe: 0}
	b := artnet.DestKey{Host: "10.0.0.3", Universe: 4}
	tab.Next(a)
	tab.Next(b)
	tab.Sweep(map[artnet.DestKey]bool{a: true})
	if tab.Len() != 1 {
		t.Fatalf("expected 1 counter after sweep, got %d", tab.Len())
	}
	// b restarts from zero when addressed again
	if got := tab.Next(b); got != 0 {
		t.Errorf("swept destination should restart at 0, got %d", got)
	}
}

func TestPollReply(t *testing.T) {
	reply := make([]byte, 64)
	copy(reply, "Art-Net\x00")
	reply[8], reply[9] = 0x00, 0x21
	copy(reply[26:], "dimmer-rack\x00")
	name, ok := artnet.DecodePollReply(reply)
	if !ok || name != "dimmer-rack" {
		t.Errorf("got %q, %v", name, ok)
	}
	if _, ok := artnet.DecodePollReply(artnet.EncodePoll()); ok {
		t.Error("an ArtPoll packet is not a reply")
	}
}
