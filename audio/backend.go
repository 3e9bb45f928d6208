package audio

import "io"

type (
	// StreamOptions are the parameters a backend stream is opened with.
	StreamOptions struct {
		SampleRate   int
		Channels     int
		BufferFrames int
	}

	// Stream is one open output stream pulling 16-bit interleaved PCM
	// from the source it was opened with.
	Stream interface {
		Start()
		Pause()
		Close() error
	}

	// backend abstracts the platform audio layer so the engine works the
	// same against real hardware and the headless build.
	backend interface {
		Devices() []Device
		Open(opts StreamOptions, src io.Reader) (Stream, error)
	}
)
