// Package mtc implements MIDI Time Code: the quarter-frame piece assembly
// and the full-frame universal real-time sysex, both directions. The package
// deals in raw status/data bytes so the same codec serves any MIDI driver.
package mtc

import "math"

type (
	// Rate is the 2-bit frame-rate code carried in quarter-frame piece 7 and
	// in the full-frame hours byte.
	Rate int

	// Timecode is one decoded hours:minutes:seconds:frames position.
	Timecode struct {
		Hours   int
		Minutes int
		Seconds int
		Frames  int
		Rate    Rate
	}

	// QuarterFrameDecoder assembles the eight quarter-frame pieces into a
	// Timecode. Pieces must arrive ascending mod 8; anything else throws the
	// partial group away, except piece 0 which always starts a new group.
	QuarterFrameDecoder struct {
		nibbles [8]byte
		mask    uint8
		last    int
	}

	// Encoder produces the outgoing quarter-frame cycle. The piece index
	// survives across calls so consecutive frames continue the 0..7 rotation.
	Encoder struct {
		piece int
	}
)

const (
	Rate24 Rate = iota
	Rate25
	Rate2997
	Rate30
	NumRates
)

// QuarterFrameStatus is the MIDI status byte of a quarter-frame message.
const QuarterFrameStatus = 0xF1

// quarterFrameLag is the fixed compensation for quarter-frame groups: a full
// group takes two frames to transmit, so the decoded position is two frames
// behind real time.
const quarterFrameLag = 2

var rateFPS = [NumRates]float64{24, 25, 30000.0 / 1001.0, 30}

// RateForFPS picks the closest transmittable rate for a project frame
// rate; anything at or above 29.5 fps is sent as 30 fps non-drop.
func RateForFPS(fps float64) Rate {
	switch {
	case fps < 24.5:
		return Rate24
	case fps < 27:
		return Rate25
	case fps < 29.8:
		return Rate2997
	default:
		return Rate30
	}
}

func (r Rate) FPS() float64 {
	if r < 0 || r >= NumRates {
		return 30
	}
	return rateFPS[r]
}

// TimeSeconds converts the timecode to seconds from midnight.
func (tc Timecode) TimeSeconds() float64 {
	return float64(tc.Hours)*3600 + float64(tc.Minutes)*60 + float64(tc.Seconds) +
		float64(tc.Frames)/tc.Rate.FPS()
}

// Normalize carries overflowing frames into seconds, minutes and hours, with
// the frame count rounded against the nominal rate.
func (tc Timecode) Normalize() Timecode {
	fps := int(math.Round(tc.Rate.FPS()))
	for tc.Frames >= fps {
		tc.Frames -= fps
		tc.Seconds++
	}
	for tc.Seconds >= 60 {
		tc.Seconds -= 60
		tc.Minutes++
	}
	for tc.Minutes >= 60 {
		tc.Minutes -= 60
		tc.Hours++
	}
	return tc
}

// FromSeconds builds the timecode for a position in seconds.
func FromSeconds(t float64, rate Rate) Timecode {
	if t < 0 {
		t = 0
	}
	frames := int(t*rate.FPS() + 1e-9)
	nominal := int(math.Round(rate.FPS()))
	return Timecode{
		Hours:   frames / nominal / 3600,
		Minutes: frames / nominal / 60 % 60,
		Seconds: frames / nominal % 60,
		Frames:  frames % nominal,
		Rate:    rate,
	}
}

// Feed consumes the data byte of one quarter-frame message. When the eighth
// piece completes a group, the assembled timecode is returned with the
// two-frame transmission lag already compensated.
func (d *QuarterFrameDecoder) Feed(data byte) (Timecode, bool) {
	piece := int(data>>4) & 7
	nibble := data & 0x0F
	if piece == 0 {
		// piece 0 always restarts assembly
		d.mask = 0
	} else if piece != (d.last+1)%8 {
		// out of order; the partial group cannot be trusted
		d.mask = 0
		d.last = piece
		return Timecode{}, false
	}
	d.last = piece
	d.nibbles[piece] = nibble
	d.mask |= 1 << piece
	if d.mask != 0xFF || piece != 7 {
		return Timecode{}, false
	}
	d.mask = 0
	tc := Timecode{
		Frames:  int(d.nibbles[0]) | int(d.nibbles[1]&1)<<4,
		Seconds: int(d.nibbles[2]) | int(d.nibbles[3]&3)<<4,
		Minutes: int(d.nibbles[4]) | int(d.nibbles[5]&3)<<4,
		Hours:   int(d.nibbles[6]) | int(d.nibbles[7]&1)<<4,
		Rate:    Rate(d.nibbles[7]>>1) & 3,
	}
	tc.Frames += quarterFrameLag
	return tc.Normalize(), true
}

// QuarterFrame encodes the next quarter-frame message for tc, returning the
// two-byte status+data message and advancing the piece rotation.
func (e *Encoder) QuarterFrame(tc Timecode) []byte {
	var nibble byte
	switch e.piece {
	case 0:
		nibble = byte(tc.Frames) & 0x0F
	case 1:
		nibble = byte(tc.Frames>>4) & 1
	case 2:
		nibble = byte(tc.Seconds) & 0x0F
	case 3:
		nibble = byte(tc.Seconds>>4) & 3
	case 4:
		nibble = byte(tc.Minutes) & 0x0F
	case 5:
		nibble = byte(tc.Minutes>>4) & 3
	case 6:
		nibble = byte(tc.Hours) & 0x0F
	case 7:
		nibble = byte(tc.Hours>>4)&1 | byte(tc.Rate&3)<<1
	}
	msg := []byte{QuarterFrameStatus, byte(e.piece)<<4 | nibble}
	e.piece = (e.piece + 1) % 8
	return msg
}

// Piece reports the next piece index the encoder will emit.
func (e *Encoder) Piece() int { return e.piece }

// FullFrame encodes the universal real-time full-frame sysex for tc,
// including the F0/F7 framing.
func FullFrame(tc Timecode) []byte {
	return []byte{
		0xF0, 0x7F, 0x7F, 0x01, 0x01,
		byte(tc.Hours&0x1F) | byte(tc.Rate&3)<<5,
		byte(tc.Minutes & 0x3F),
		byte(tc.Seconds & 0x3F),
		byte(tc.Frames & 0x1F),
		0xF7,
	}
}

// DecodeFullFrame validates the full-frame sysex envelope and terminator and
// extracts the timecode. No transmission compensation applies; full frames
// describe the moment they are sent.
func DecodeFullFrame(data []byte) (Timecode, bool) {
	if len(data) != 10 {
		return Timecode{}, false
	}
	if data[0] != 0xF0 || data[1] != 0x7F || data[2] != 0x7F ||
		data[3] != 0x01 || data[4] != 0x01 || data[9] != 0xF7 {
		return Timecode{}, false
	}
	return Timecode{
		Hours:   int(data[5] & 0x1F),
		Minutes: int(data[6] & 0x3F),
		Seconds: int(data[7] & 0x3F),
		Frames:  int(data[8] & 0x1F),
		Rate:    Rate(data[5]>>5) & 3,
	}, true
}
