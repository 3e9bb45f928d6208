package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/luminet/showsignal"
)

const (
	defaultSampleRate   = 48000
	defaultBufferFrames = 480
	defaultChannels     = 2

	// blocks rendered ahead before the stream starts, masking startup
	// latency of the platform layer
	prebufferBlocks = 2
)

type (
	// Config selects the output stream parameters. Zero fields take
	// defaults (48 kHz, stereo, 10 ms blocks, default device).
	Config struct {
		Device       string
		SampleRate   int
		BufferFrames int
		Channels     int
	}

	// Status is a point-in-time report of the engine. OK is false while
	// the engine is unavailable; it stays false until a Configure
	// succeeds.
	Status struct {
		OK           bool
		Error        string
		Device       string
		SampleRate   int
		BufferFrames int
		Channels     int
		Playing      bool
		Time         float64
	}

	// Engine decodes, mixes and plays the audio tracks of a project. All
	// control methods run on the caller's goroutine; the render path runs
	// on the backend's callback goroutine and only ever loads the current
	// snapshot, so controls never stall playback.
	Engine struct {
		mu      sync.Mutex
		backend backend
		stream  Stream
		cfg     Config
		device  Device
		err     error
		tracks  []showsignal.Track
		cache   map[string]*Buffer

		snap    atomic.Pointer[snapshot]
		frame   atomic.Int64
		playing atomic.Bool

		// rend belongs to the callback goroutine; prebufRend belongs to
		// the control side, so Play can pre-render while a Read is in
		// flight without sharing scratch memory.
		rend       renderer
		prebufRend renderer
		readMu     sync.Mutex
		pending    []byte
		pendingBuf []byte
	}
)

func NewEngine() *Engine {
	return newEngine(newPlatformBackend())
}

func newEngine(b backend) *Engine {
	return &Engine{backend: b, cache: make(map[string]*Buffer)}
}

// Configure resolves the device hint and (re)opens the output stream. The
// stream is reopened only when sample rate, buffer size, channel count or
// device actually changed. On failure the engine stays unavailable and
// keeps the error for Status.
func (e *Engine) Configure(cfg Config) error {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = defaultBufferFrames
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	device, ok := resolveDevice(e.backend.Devices(), cfg.Device, cfg.Channels)
	if !ok {
		e.err = errors.New("no audio devices available")
		return e.err
	}
	if e.stream != nil && e.err == nil &&
		cfg.SampleRate == e.cfg.SampleRate && cfg.BufferFrames == e.cfg.BufferFrames &&
		cfg.Channels == e.cfg.Channels && device.ID == e.device.ID {
		return nil
	}
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.cfg, e.device = cfg, device
	samples := cfg.BufferFrames * cfg.Channels
	e.rend.resize(samples)
	e.prebufRend.resize(samples)
	e.pendingBuf = make([]byte, prebufferBlocks*samples*2)
	e.pending = nil
	e.storeSnapshotLocked()
	stream, err := e.backend.Open(StreamOptions{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		BufferFrames: cfg.BufferFrames,
	}, e)
	if err != nil {
		e.err = err
		return err
	}
	e.stream, e.err = stream, nil
	return nil
}

// SetTracks replaces the mixed track set. Audio files are decoded here,
// cached by path, and a failing file rejects only its own track; the
// returned error joins the per-track failures.
func (e *Engine) SetTracks(tracks []showsignal.Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = make([]showsignal.Track, 0, len(tracks))
	var errs []error
	for i := range tracks {
		t := tracks[i].Copy()
		if t.Kind != showsignal.KindAudio || t.Clip == nil {
			continue
		}
		if _, err := e.loadClipLocked(t.Clip.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		e.tracks = append(e.tracks, t)
	}
	e.storeSnapshotLocked()
	return errors.Join(errs...)
}

// UpdateTrackMix changes gain and mute of one track by name without
// touching the decoded buffers.
func (e *Engine) UpdateTrackMix(name string, gain float64, mute bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.tracks {
		if e.tracks[i].Name == name {
			e.tracks[i].Mute = mute
			if e.tracks[i].Clip != nil {
				e.tracks[i].Clip.Gain = gain
			}
		}
	}
	e.storeSnapshotLocked()
}

// Play seeks to t seconds, pre-renders a few blocks and starts the stream.
func (e *Engine) Play(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate := e.cfg.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	e.frame.Store(int64(t * float64(rate)))
	e.prebufferLocked()
	e.playing.Store(true)
	if e.stream != nil {
		e.stream.Start()
	}
}

// Pause stops producing sound but keeps the stream open; the callback
// emits silence until the next Play.
func (e *Engine) Pause() {
	e.playing.Store(false)
	e.readMu.Lock()
	e.pending = nil
	e.readMu.Unlock()
}

// Seek moves the playhead. Pre-rendered blocks from the previous position
// are discarded.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	rate := e.cfg.SampleRate
	e.mu.Unlock()
	if rate <= 0 {
		rate = defaultSampleRate
	}
	e.readMu.Lock()
	e.pending = nil
	e.readMu.Unlock()
	e.frame.Store(int64(t * float64(rate)))
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		OK:           e.stream != nil && e.err == nil,
		Device:       e.device.Name,
		SampleRate:   e.cfg.SampleRate,
		BufferFrames: e.cfg.BufferFrames,
		Channels:     e.cfg.Channels,
		Playing:      e.playing.Load(),
	}
	if e.err != nil {
		s.Error = e.err.Error()
	}
	if e.cfg.SampleRate > 0 {
		s.Time = float64(e.frame.Load()) / float64(e.cfg.SampleRate)
	}
	return s
}

func (e *Engine) ListDevices() []Device {
	return e.backend.Devices()
}

// Close stops playback and releases the stream. Decoded buffers are
// dropped so a later reconfigure starts clean.
func (e *Engine) Close() error {
	e.playing.Store(false)
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.stream != nil {
		err = e.stream.Close()
		e.stream = nil
	}
	e.cache = make(map[string]*Buffer)
	return err
}

// Read is the stream pull callback: interleaved 16-bit little-endian PCM,
// pre-rendered blocks first, then live mix. It never blocks on the
// control mutex and never allocates.
func (e *Engine) Read(p []byte) (int, error) {
	snap := e.snap.Load()
	if snap == nil || !e.playing.Load() {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	off := 0
	e.readMu.Lock()
	if len(e.pending) > 0 {
		off = copy(p, e.pending)
		e.pending = e.pending[off:]
	}
	e.readMu.Unlock()
	frameBytes := 2 * snap.channels
	for off+frameBytes <= len(p) {
		frames := (len(p) - off) / frameBytes
		if frames > snap.blockFrames {
			frames = snap.blockFrames
		}
		start := e.frame.Add(int64(frames)) - int64(frames)
		e.rend.render(snap, start, frames, p[off:off+frames*frameBytes])
		off += frames * frameBytes
	}
	for i := off; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (e *Engine) loadClipLocked(path string) (*Buffer, error) {
	if buf, ok := e.cache[path]; ok {
		return buf, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening clip %s: %w", path, err)
	}
	defer f.Close()
	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decoding clip %s: %w", path, err)
	}
	e.cache[path] = buf
	return buf, nil
}

// storeSnapshotLocked rebuilds the immutable render snapshot from the
// current track set and swaps it in for the callback.
func (e *Engine) storeSnapshotLocked() {
	rate := e.cfg.SampleRate
	channels := e.cfg.Channels
	if rate <= 0 || channels <= 0 {
		return
	}
	blockFrames := e.cfg.BufferFrames
	if blockFrames <= 0 {
		blockFrames = defaultBufferFrames
	}
	snap := &snapshot{rate: rate, channels: channels, blockFrames: blockFrames}
	for i := range e.tracks {
		t := &e.tracks[i]
		if !t.Active(e.tracks) || t.Clip == nil {
			continue
		}
		buf, ok := e.cache[t.Clip.Path]
		if !ok {
			continue
		}
		gain := float32(t.Clip.Gain)
		if gain == 0 {
			gain = 1 // unset in the project file
		}
		snap.tracks = append(snap.tracks, renderTrack{
			channels:   buf.Channels,
			channelMap: outputChannelMap(t.Clip.ChannelMap, len(buf.Channels), channels),
			step:       float64(buf.Rate) / float64(rate),
			startFrame: t.Clip.Start * float64(rate),
			gain:       gain,
		})
	}
	e.snap.Store(snap)
}

// outputChannelMap normalizes a clip's 1-based source routing to exactly
// one entry per output channel; with no explicit map, source channels
// cycle across the outputs.
func outputChannelMap(m []int, srcChannels, outChannels int) []int {
	out := make([]int, outChannels)
	for o := range out {
		if o < len(m) {
			out[o] = m[o]
		} else if len(m) == 0 && srcChannels > 0 {
			out[o] = o%srcChannels + 1
		}
	}
	return out
}

func (e *Engine) prebufferLocked() {
	snap := e.snap.Load()
	if snap == nil || len(e.pendingBuf) == 0 {
		return
	}
	blockBytes := e.cfg.BufferFrames * snap.channels * 2
	e.readMu.Lock()
	defer e.readMu.Unlock()
	e.pending = e.pendingBuf[:0]
	for b := 0; b < prebufferBlocks; b++ {
		start := e.frame.Add(int64(e.cfg.BufferFrames)) - int64(e.cfg.BufferFrames)
		e.prebufRend.render(snap, start, e.cfg.BufferFrames, e.pendingBuf[b*blockBytes:(b+1)*blockBytes])
	}
	e.pending = e.pendingBuf[:prebufferBlocks*blockBytes]
}
