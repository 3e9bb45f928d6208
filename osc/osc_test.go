package osc_test

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/luminet/showsignal/osc"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  osc.Message
	}{
		{"no args", osc.Message{Address: "/ping"}},
		{"int", osc.Message{Address: "/light/1", Arguments: []any{int32(255)}}},
		{"float", osc.Message{Address: "/fader", Arguments: []any{float32(0.25)}}},
		{"mixed array", osc.Message{Address: "/xyz", Arguments: []any{float32(1.5), int32(-7), float32(0)}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := osc.Decode(test.msg.Encode())
			if len(got) != 1 {
				t.Fatalf("expected 1 message, got %d", len(got))
			}
			if got[0].Address != test.msg.Address {
				t.Errorf("address: got %q, want %q", got[0].Address, test.msg.Address)
			}
			if len(got[0].Arguments) != len(test.msg.Arguments) {
				t.Fatalf("arguments: got %d, want %d", len(got[0].Arguments), len(test.msg.Arguments))
			}
			if !reflect.DeepEqual(got[0].Arguments, test.msg.Arguments) {
				t.Errorf("arguments: got %v, want %v", got[0].Arguments, test.msg.Arguments)
			}
		})
	}
}

func TestEncodingIsPadded(t *testing.T) {
	msg := osc.Message{Address: "/abc", Arguments: []any{int32(1)}}
	b := msg.Encode()
	if len(b)%4 != 0 {
		t.Errorf("encoded length %d is not 4-byte aligned", len(b))
	}
	// "/abc" needs a full pad word for its terminator
	want := append([]byte("/abc\x00\x00\x00\x00"), []byte(",i\x00\x00\x00\x00\x00\x01")...)
	if !reflect.DeepEqual(b, want) {
		t.Errorf("encoding mismatch:\ngot  % x\nwant % x", b, want)
	}
}

func TestNumberMessageTagChoice(t *testing.T) {
	msg := osc.NumberMessage("/v", []float64{3, 0.5}, osc.ModeAuto)
	if _, ok := msg.Arguments[0].(int32); !ok {
		t.Errorf("integral value should encode as int32, got %T", msg.Arguments[0])
	}
	if _, ok := msg.Arguments[1].(float32); !ok {
		t.Errorf("fractional value should encode as float32, got %T", msg.Arguments[1])
	}
	forced := osc.NumberMessage("/v", []float64{3, 0.5}, osc.ModeFloat)
	for i, a := range forced.Arguments {
		if _, ok := a.(float32); !ok {
			t.Errorf("ModeFloat argument %d: got %T", i, a)
		}
	}
}

func TestDecodeExtraTags(t *testing.T) {
	// hand-built message: /x with tags ,dThN
	data := []byte("/x\x00\x00")
	data = append(data, []byte(",dThN\x00\x00\x00")...)
	data = binary.BigEndian.AppendUint64(data, 0x3FF0000000000000) // float64(1.0)
	data = binary.BigEndian.AppendUint64(data, 42)                 // int64
	msgs := osc.Decode(data)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want := []any{float64(1.0), true, float64(42), nil}
	if !reflect.DeepEqual(msgs[0].Arguments, want) {
		t.Errorf("arguments: got %v, want %v", msgs[0].Arguments, want)
	}
}

func TestDecodeTruncatedKeepsParsed(t *testing.T) {
	msg := osc.Message{Address: "/a", Arguments: []any{int32(1), int32(2)}}
	b := msg.Encode()
	got := osc.Decode(b[:len(b)-2]) // cut into the last argument
	if len(got) != 1 {
		t.Fatalf("expected 1 partial message, got %d", len(got))
	}
	if len(got[0].Arguments) != 1 || got[0].Arguments[0] != int32(1) {
		t.Errorf("expected the first argument to survive, got %v", got[0].Arguments)
	}
	if osc.Decode([]byte{0x2f, 0x61}) != nil { // no terminator at all
		t.Error("expected nil for unterminated address")
	}
}

func TestBundleFlattening(t *testing.T) {
	inner1 := osc.Message{Address: "/one", Arguments: []any{int32(1)}}
	inner2 := osc.Message{Address: "/two", Arguments: []any{int32(2)}}
	nested := bundle(inner2.Encode())
	packet := bundle(inner1.Encode(), nested)
	got := osc.Decode(packet)
	if len(got) != 2 {
		t.Fatalf("expected 2 flattened messages, got %d", len(got))
	}
	if got[0].Address != "/one" || got[1].Address != "/two" {
		t.Errorf("wire traversal order not preserved: %q, %q", got[0].Address, got[1].Address)
	}
}

// bundle wraps the given encoded elements into an OSC bundle packet.
func bundle(elements ...[]byte) []byte {
	b := []byte("#bundle\x00")
	b = append(b, make([]byte, 8)...) // timetag
	for _, e := range elements {
		b = binary.BigEndian.AppendUint32(b, uint32(len(e)))
		b = append(b, e...)
	}
	return b
}
