package mtc_test

import (
	"math"
	"testing"

	"github.com/luminet/showsignal/mtc"
)

func quarterFrames(tc mtc.Timecode) [][]byte {
	var e mtc.Encoder
	msgs := make([][]byte, 8)
	for i := range msgs {
		msgs[i] = e.QuarterFrame(tc)
	}
	return msgs
}

func TestQuarterFrameRoundTrip(t *testing.T) {
	want := mtc.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4, Rate: mtc.Rate30}
	var d mtc.QuarterFrameDecoder
	var got mtc.Timecode
	ok := false
	for _, msg := range quarterFrames(want) {
		if msg[0] != mtc.QuarterFrameStatus {
			t.Fatalf("bad status byte %#x", msg[0])
		}
		got, ok = d.Feed(msg[1])
	}
	if !ok {
		t.Fatal("eight in-order pieces should decode")
	}
	wantTime := 1*3600.0 + 2*60 + 3 + (4+2)/30.0
	if math.Abs(got.TimeSeconds()-wantTime) > 1e-9 {
		t.Errorf("time: got %v, want %v", got.TimeSeconds(), wantTime)
	}
	if got.Rate != mtc.Rate30 {
		t.Errorf("rate: got %v, want Rate30", got.Rate)
	}
}

func TestQuarterFrameOutOfOrderRestarts(t *testing.T) {
	tc := mtc.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4, Rate: mtc.Rate30}
	msgs := quarterFrames(tc)
	var d mtc.QuarterFrameDecoder
	// piece 2 first: contributes nothing
	if _, ok := d.Feed(msgs[2][1]); ok {
		t.Fatal("lone piece 2 should not decode")
	}
	// piece 0 restarts; a full in-order group then decodes
	var got mtc.Timecode
	ok := false
	for _, msg := range msgs {
		got, ok = d.Feed(msg[1])
	}
	if !ok {
		t.Fatal("group after restart should decode")
	}
	if got.Seconds != 3 || got.Frames != 4+2 {
		t.Errorf("decoded %+v", got)
	}
	// skipping a piece mid-group spoils the group
	d = mtc.QuarterFrameDecoder{}
	d.Feed(msgs[0][1])
	d.Feed(msgs[1][1])
	if _, ok := d.Feed(msgs[3][1]); ok {
		t.Fatal("skipped piece should not decode")
	}
	for _, msg := range msgs[4:] {
		if _, ok := d.Feed(msg[1]); ok {
			t.Fatal("spoiled group should not decode")
		}
	}
}

func TestQuarterFrameLagNormalizes(t *testing.T) {
	// 29 frames at 30 fps rolls into the next second with the +2 lag
	tc := mtc.Timecode{Seconds: 59, Frames: 29, Rate: mtc.Rate30}
	var d mtc.QuarterFrameDecoder
	var got mtc.Timecode
	ok := false
	for _, msg := range quarterFrames(tc) {
		got, ok = d.Feed(msg[1])
	}
	if !ok {
		t.Fatal("group should decode")
	}
	if got.Minutes != 1 || got.Seconds != 0 || got.Frames != 1 {
		t.Errorf("expected 00:01:00:01, got %+v", got)
	}
}

func TestFullFrameRoundTrip(t *testing.T) {
	tests := []mtc.Timecode{
		{Hours: 0, Minutes: 0, Seconds: 0, Frames: 0, Rate: mtc.Rate24},
		{Hours: 23, Minutes: 59, Seconds: 59, Frames: 29, Rate: mtc.Rate30},
		{Hours: 12, Minutes: 34, Seconds: 56, Frames: 12, Rate: mtc.Rate2997},
	}
	for _, want := range tests {
		got, ok := mtc.DecodeFullFrame(mtc.FullFrame(want))
		if !ok {
			t.Fatalf("decode failed for %+v", want)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
}

func TestFullFrameValidation(t *testing.T) {
	good := mtc.FullFrame(mtc.Timecode{Rate: mtc.Rate25})
	for _, corrupt := range []func([]byte){
		func(b []byte) { b[0] = 0xF1 },
		func(b []byte) { b[3] = 0x02 },
		func(b []byte) { b[9] = 0x00 },
	} {
		b := append([]byte(nil), good...)
		corrupt(b)
		if _, ok := mtc.DecodeFullFrame(b); ok {
			t.Errorf("corrupted sysex % x should not decode", b)
		}
	}
	if _, ok := mtc.DecodeFullFrame(good[:9]); ok {
		t.Error("truncated sysex should not decode")
	}
}

func TestFromSeconds(t *testing.T) {
	tc := mtc.FromSeconds(3723.2, mtc.Rate30)
	if tc.Hours != 1 || tc.Minutes != 2 || tc.Seconds != 3 || tc.Frames != 6 {
		t.Errorf("got %+v", tc)
	}
	if tc := mtc.FromSeconds(-1, mtc.Rate25); tc != (mtc.Timecode{Rate: mtc.Rate25}) {
		t.Errorf("negative time should clamp to zero, got %+v", tc)
	}
}

func TestEncoderPieceRotation(t *testing.T) {
	var e mtc.Encoder
	tc := mtc.Timecode{Rate: mtc.Rate25}
	for i := 0; i < 16; i++ {
		msg := e.QuarterFrame(tc)
		if got := int(msg[1] >> 4); got != i%8 {
			t.Fatalf("message %d carries piece %d", i, got)
		}
	}
}
