package audio

import (
	"encoding/binary"

	"github.com/viterin/vek/vek32"
)

type (
	// renderTrack is the immutable per-track view the callback renders
	// from. step converts one output frame into source frames.
	renderTrack struct {
		channels   [][]float32
		channelMap []int // per output channel, 1-based source channel, 0 silent
		step       float64
		startFrame float64
		gain       float32
	}

	// snapshot is the full mixer state at one point in time. The callback
	// loads it atomically and never mutates it.
	snapshot struct {
		tracks      []renderTrack
		rate        int
		channels    int
		blockFrames int
	}

	// renderer owns the callback-side scratch memory so the hot path
	// never allocates.
	renderer struct {
		accum   []float32
		scratch []float32
	}
)

func (r *renderer) resize(samples int) {
	if cap(r.accum) < samples {
		r.accum = make([]float32, samples)
		r.scratch = make([]float32, samples)
	}
}

// render mixes frames output frames starting at transport frame start into
// out as interleaved 16-bit little-endian PCM. out must hold exactly
// frames*snap.channels samples.
func (r *renderer) render(snap *snapshot, start int64, frames int, out []byte) {
	n := frames * snap.channels
	acc := vek32.Zeros_Into(r.accum, n)
	for ti := range snap.tracks {
		tr := &snap.tracks[ti]
		if len(tr.channels) == 0 {
			continue
		}
		s := vek32.Zeros_Into(r.scratch, n)
		active := false
		for f := 0; f < frames; f++ {
			pos := (float64(start) + float64(f) - tr.startFrame) * tr.step
			if pos < 0 {
				continue
			}
			i0 := int(pos)
			frac := float32(pos - float64(i0))
			for o := 0; o < snap.channels; o++ {
				srcCh := tr.channelMap[o]
				if srcCh <= 0 || srcCh > len(tr.channels) {
					continue
				}
				src := tr.channels[srcCh-1]
				if i0+1 >= len(src) {
					continue
				}
				s[f*snap.channels+o] = src[i0] + (src[i0+1]-src[i0])*frac
				active = true
			}
		}
		if !active {
			continue
		}
		if tr.gain != 1 {
			vek32.MulNumber_Inplace(s, tr.gain)
		}
		vek32.Add_Inplace(acc, s)
	}
	for i, v := range acc {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*32767)))
	}
}
