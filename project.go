package showsignal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// SyncSource selects which timing source drives the transport clock.
	SyncSource int

	// Project is the show document the signal layer runs: the automation
	// tracks per output protocol, the audio tracks, and the global timing
	// parameters. The editing front end owns richer per-document state; this
	// is the part the runtime needs.
	Project struct {
		Name   string  `yaml:"name,omitempty"`
		FPS    float64 `yaml:"fps"`    // project frame rate, dispatch tick rate
		Length float64 `yaml:"length"` // seconds; internal clock auto-stops here

		Sync        SyncSource `yaml:"sync,omitempty"`
		CapturePort int        `yaml:"capturePort,omitempty"` // incoming OSC listener

		Tracks []Track `yaml:"tracks,omitempty"`
	}
)

const (
	SyncInternal SyncSource = iota
	SyncMTC
	SyncLTC
	NumSyncSources
)

var syncSourceNames = [NumSyncSources]string{"internal", "mtc", "ltc"}

func (s SyncSource) String() string {
	if s < 0 || s >= NumSyncSources {
		return "internal"
	}
	return syncSourceNames[s]
}

func (s SyncSource) MarshalYAML() (interface{}, error) { return s.String(), nil }

func (s *SyncSource) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseSyncSource(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSyncSource maps "internal", "mtc" or "ltc" to its SyncSource.
func ParseSyncSource(name string) (SyncSource, error) {
	for i, n := range syncSourceNames {
		if n == name {
			return SyncSource(i), nil
		}
	}
	return SyncInternal, fmt.Errorf("unknown sync source %q", name)
}

func (p *Project) Copy() Project {
	tracks := make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		tracks[i] = p.Tracks[i].Copy()
	}
	ret := *p
	ret.Tracks = tracks
	return ret
}

// TracksOfKind returns the tracks of one kind, in document order.
func (p *Project) TracksOfKind(kind TrackKind) []Track {
	var ret []Track
	for i := range p.Tracks {
		if p.Tracks[i].Kind == kind {
			ret = append(ret, p.Tracks[i])
		}
	}
	return ret
}

// FrameInterval returns the dispatch tick interval in seconds, floored so
// that a misconfigured frame rate cannot spin the dispatch loops.
func (p *Project) FrameInterval() float64 {
	const minInterval = 0.004
	if p.FPS <= 0 {
		return minInterval
	}
	if iv := 1 / p.FPS; iv > minInterval {
		return iv
	}
	return minInterval
}

func (p *Project) Validate() error {
	if p.FPS <= 0 {
		return errors.New("project frame rate should be > 0")
	}
	if p.Length < 0 {
		return errors.New("project length cannot be negative")
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Kind < 0 || t.Kind >= NumTrackKinds {
			return fmt.Errorf("track %q has an unknown kind", t.Name)
		}
		if t.Kind == KindAudio {
			if t.Clip == nil {
				return fmt.Errorf("audio track %q has no clip", t.Name)
			}
			continue
		}
		prev := -1.0
		for _, n := range t.Nodes {
			if n.Time < 0 {
				return fmt.Errorf("track %q has a node before time 0", t.Name)
			}
			if n.Time < prev {
				return fmt.Errorf("track %q nodes are not sorted by time", t.Name)
			}
			prev = n.Time
		}
	}
	return nil
}

// ReadProject parses a project document, trying JSON first and falling back
// to YAML, so both document flavors keep loading.
func ReadProject(r io.Reader) (Project, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Project{}, fmt.Errorf("could not read project: %w", err)
	}
	var p Project
	if errJSON := json.Unmarshal(b, &p); errJSON != nil {
		if errYaml := yaml.Unmarshal(b, &p); errYaml != nil {
			return Project{}, fmt.Errorf("the project could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Write serializes the project as YAML.
func (p *Project) Write(w io.Writer) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("could not marshal project: %w", err)
	}
	_, err = w.Write(b)
	return err
}
