// Package osc implements the wire codec for the open control-message
// protocol: hierarchical addresses plus typed big-endian arguments, with
// recursive bundle decoding. The decoder is deliberately forgiving; packets
// arrive from untrusted live sources, so a malformed argument stops that one
// message's parse and keeps whatever was already decoded.
package osc

import (
	"encoding/binary"
	"math"
)

type (
	// Message is one decoded control message. Arguments holds int32, float32,
	// float64, string, bool, nil or Impulse values, in wire order.
	Message struct {
		Address   string
		Arguments []any
	}

	// Impulse is the zero-width 'I' argument.
	Impulse struct{}

	// Mode overrides the per-element integer/float choice when encoding
	// numeric arrays.
	Mode int
)

const (
	ModeAuto Mode = iota
	ModeInt
	ModeFloat
)

const bundleAddress = "#bundle"

// padLen returns the padded length of a string of length n including the
// mandatory trailing NUL, rounded up to a 4-byte boundary.
func padLen(n int) int {
	return (n + 4) &^ 3
}

func appendPadded(dst []byte, s string) []byte {
	dst = append(dst, s...)
	for n := padLen(len(s)) - len(s); n > 0; n-- {
		dst = append(dst, 0)
	}
	return dst
}

// Encode serializes the message. Only int32 and float32 arguments are
// encoded; other argument types are skipped, as the senders in this layer
// only produce numbers.
func (m *Message) Encode() []byte {
	tags := make([]byte, 0, len(m.Arguments)+1)
	tags = append(tags, ',')
	body := make([]byte, 0, 4*len(m.Arguments))
	for _, arg := range m.Arguments {
		switch v := arg.(type) {
		case int32:
			tags = append(tags, 'i')
			body = binary.BigEndian.AppendUint32(body, uint32(v))
		case float32:
			tags = append(tags, 'f')
			body = binary.BigEndian.AppendUint32(body, math.Float32bits(v))
		}
	}
	out := make([]byte, 0, padLen(len(m.Address))+padLen(len(tags))+len(body))
	out = appendPadded(out, m.Address)
	out = appendPadded(out, string(tags))
	return append(out, body...)
}

// NumberMessage builds a message from a numeric array, choosing 'i' for
// integral values and 'f' otherwise, per element, unless mode forces one tag
// for every element.
func NumberMessage(address string, values []float64, mode Mode) Message {
	args := make([]any, 0, len(values))
	for _, v := range values {
		asInt := mode == ModeInt
		if mode == ModeAuto && v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			asInt = true
		}
		if asInt {
			args = append(args, int32(v))
		} else {
			args = append(args, float32(v))
		}
	}
	return Message{Address: address, Arguments: args}
}

// Decode parses a packet into messages. A bundle packet is flattened
// recursively in wire traversal order. Malformed data never fails the whole
// call: parsing of the offending message stops and everything decoded so far
// is returned.
func Decode(data []byte) []Message {
	addr, rest, ok := readString(data)
	if !ok {
		return nil
	}
	if addr == bundleAddress {
		return decodeBundle(rest)
	}
	msg := Message{Address: addr}
	msg.Arguments = decodeArguments(rest)
	return []Message{msg}
}

func decodeBundle(data []byte) []Message {
	if len(data) < 8 { // timetag; scheduling is not this layer's job
		return nil
	}
	data = data[8:]
	var msgs []Message
	for len(data) >= 4 {
		size := int(int32(binary.BigEndian.Uint32(data)))
		data = data[4:]
		if size < 0 || size > len(data) {
			break
		}
		msgs = append(msgs, Decode(data[:size])...)
		data = data[size:]
	}
	return msgs
}

func decodeArguments(data []byte) []any {
	tags, rest, ok := readString(data)
	if !ok || len(tags) == 0 || tags[0] != ',' {
		return nil
	}
	var args []any
	for _, tag := range []byte(tags[1:]) {
		switch tag {
		case 'i':
			if len(rest) < 4 {
				return args
			}
			args = append(args, int32(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 'f':
			if len(rest) < 4 {
				return args
			}
			args = append(args, math.Float32frombits(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 'd':
			if len(rest) < 8 {
				return args
			}
			args = append(args, math.Float64frombits(binary.BigEndian.Uint64(rest)))
			rest = rest[8:]
		case 'h':
			// int64 does not survive the automation value path anyway, so it
			// is coerced to float64 like the capture side expects.
			if len(rest) < 8 {
				return args
			}
			args = append(args, float64(int64(binary.BigEndian.Uint64(rest))))
			rest = rest[8:]
		case 's':
			s, r, ok := readString(rest)
			if !ok {
				return args
			}
			args = append(args, s)
			rest = r
		case 'T':
			args = append(args, true)
		case 'F':
			args = append(args, false)
		case 'N':
			args = append(args, nil)
		case 'I':
			args = append(args, Impulse{})
		default:
			// unknown tag of unknown width; nothing after it can be trusted
			return args
		}
	}
	return args
}

// readString reads a NUL-terminated, 4-byte padded string. ok is false when
// the terminator or the padding is missing.
func readString(data []byte) (s string, rest []byte, ok bool) {
	end := -1
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, false
	}
	padded := padLen(end)
	if padded > len(data) {
		return "", nil, false
	}
	return string(data[:end]), data[padded:], true
}
