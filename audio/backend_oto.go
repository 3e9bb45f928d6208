//go:build !headless

package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBackend plays through the default system output. oto does not
// enumerate devices and allows only one context per process, so the
// backend reports a single default device and keeps the context for the
// parameters of the first open.
type otoBackend struct {
	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
}

func newPlatformBackend() backend {
	return &otoBackend{}
}

func (b *otoBackend) Devices() []Device {
	return []Device{{ID: "default", Name: "System Default", MaxChannels: 2, Default: true}}
}

func (b *otoBackend) Open(opts StreamOptions, src io.Reader) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   opts.SampleRate,
			ChannelCount: opts.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Second * time.Duration(opts.BufferFrames) / time.Duration(opts.SampleRate),
		})
		if err != nil {
			return nil, fmt.Errorf("opening audio context: %w", err)
		}
		<-ready
		b.ctx, b.rate, b.channels = ctx, opts.SampleRate, opts.Channels
	} else if b.rate != opts.SampleRate || b.channels != opts.Channels {
		return nil, fmt.Errorf("audio context is fixed at %d Hz / %d ch after first open", b.rate, b.channels)
	}
	return &otoStream{player: b.ctx.NewPlayer(src)}, nil
}

type otoStream struct {
	player *oto.Player
}

func (s *otoStream) Start() { s.player.Play() }

func (s *otoStream) Pause() { s.player.Pause() }

func (s *otoStream) Close() error { return s.player.Close() }
