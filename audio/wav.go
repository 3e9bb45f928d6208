package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Buffer holds one decoded audio file as non-interleaved per-channel
// samples in [-1,1].
type Buffer struct {
	Channels [][]float32
	Rate     int
}

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV parses a RIFF/WAVE stream into per-channel float buffers.
// PCM 8/16/24/32 bit and IEEE float 32/64 bit data is accepted; anything
// else is an error so that a bad file rejects only its own track.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}
	var (
		format, channels, bits int
		rate                   int
		sampleData             []byte
		haveFmt                bool
	)
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]
		if size > len(body) {
			size = len(body) // truncated final chunk, take what is there
		}
		body = body[:size]
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("fmt chunk too short")
			}
			format = int(binary.LittleEndian.Uint16(body[0:2]))
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			if format == wavFormatExtensible && size >= 26 {
				// actual format lives in the first two bytes of the
				// extension subformat GUID
				format = int(binary.LittleEndian.Uint16(body[24:26]))
			}
			haveFmt = true
		case "data":
			sampleData = body
		}
		pos += 8 + size
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}
	if !haveFmt {
		return nil, errors.New("missing fmt chunk")
	}
	if sampleData == nil {
		return nil, errors.New("missing data chunk")
	}
	if channels < 1 || channels > 32 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}
	samples, err := convertSamples(format, bits, channels, sampleData)
	if err != nil {
		return nil, err
	}
	return &Buffer{Channels: samples, Rate: rate}, nil
}

func convertSamples(format, bits, channels int, data []byte) ([][]float32, error) {
	var (
		bytesPer int
		read     func([]byte) float32
	)
	switch {
	case format == wavFormatPCM && bits == 8:
		bytesPer = 1
		read = func(b []byte) float32 { return (float32(b[0]) - 128) / 128 }
	case format == wavFormatPCM && bits == 16:
		bytesPer = 2
		read = func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}
	case format == wavFormatPCM && bits == 24:
		bytesPer = 3
		read = func(b []byte) float32 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			v = v << 8 >> 8 // sign extend
			return float32(v) / 8388608
		}
	case format == wavFormatPCM && bits == 32:
		bytesPer = 4
		read = func(b []byte) float32 {
			return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483648
		}
	case format == wavFormatFloat && bits == 32:
		bytesPer = 4
		read = func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	case format == wavFormatFloat && bits == 64:
		bytesPer = 8
		read = func(b []byte) float32 {
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	default:
		return nil, fmt.Errorf("unsupported wav format %d with %d bits", format, bits)
	}
	frameBytes := bytesPer * channels
	frames := len(data) / frameBytes
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		base := f * frameBytes
		for c := 0; c < channels; c++ {
			out[c][f] = read(data[base+c*bytesPer:])
		}
	}
	return out, nil
}
