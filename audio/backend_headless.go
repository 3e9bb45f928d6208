//go:build headless

package audio

import "io"

// headlessBackend discards all output. It exists so the engine keeps its
// full control surface on machines with no audio stack.
type headlessBackend struct{}

func newPlatformBackend() backend {
	return headlessBackend{}
}

func (headlessBackend) Devices() []Device {
	return []Device{{ID: "null", Name: "Null Output", MaxChannels: 2, Default: true}}
}

func (headlessBackend) Open(opts StreamOptions, src io.Reader) (Stream, error) {
	return nullStream{}, nil
}

type nullStream struct{}

func (nullStream) Start()       {}
func (nullStream) Pause()       {}
func (nullStream) Close() error { return nil }
