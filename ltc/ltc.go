// Package ltc defines the contract between the transport clock and a
// longitudinal-timecode decoder. The decoder itself lives outside this
// module: it consumes raw samples from an audio input channel and yields
// timecode frames, which the transport applies directly without filtering.
package ltc

import "time"

type (
	// Frame is one decoded timecode frame: the position it encodes and the
	// wall-clock moment it was decoded, used to rearm the dropout watchdog.
	Frame struct {
		Seconds float64
		At      time.Time
	}

	// Decoder turns raw input samples into timecode frames. Write never
	// blocks; frames decoded so far are returned with each call.
	Decoder interface {
		Write(samples []float32) []Frame
	}
)

// DropoutTimeout is how long the transport keeps trusting the last frame; no
// frame within this window means the external source is gone.
const DropoutTimeout = 500 * time.Millisecond
