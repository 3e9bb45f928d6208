package showsignal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type (
	// TrackKind tells what a Track controls and therefore how its sampled
	// values are turned into outgoing messages. Audio tracks are the odd one
	// out: they carry a Clip instead of Nodes and are consumed by the audio
	// engine rather than the dispatchers.
	TrackKind int

	// CurveShape is the interpolation shape stored on the segment-start node.
	// Only CurveLinear and CurveNone affect sampling; the remaining shapes
	// are kept so that documents authored with them keep round-tripping.
	CurveShape int

	// Node is one authored automation point. Time is in seconds from the
	// start of the project. The fields after Shape are kind-specific payload
	// and are zero for kinds that do not use them.
	Node struct {
		Time  float64    `yaml:"time"`
		Value float64    `yaml:"value"`
		Shape CurveShape `yaml:"shape,omitempty"`

		Color    string    `yaml:"color,omitempty"`    // hex RRGGBB, color kinds
		Values   []float64 `yaml:"values,flow,omitempty"` // vector kinds
		Duration float64   `yaml:"duration,omitempty"` // flag kinds
		Address  string    `yaml:"address,omitempty"`  // flag address override
	}

	// Destination is where a track's output goes. Which fields matter
	// depends on the track kind: OSC uses Host/Port/Address, DMX uses
	// Host/Universe/Channel (and Offsets for color fixtures), MIDI uses
	// Channel/Number.
	Destination struct {
		Host     string `yaml:"host,omitempty"`
		Port     int    `yaml:"port,omitempty"`
		Address  string `yaml:"address,omitempty"`
		Universe int    `yaml:"universe,omitempty"`
		Channel  int    `yaml:"channel,omitempty"`
		Number   int    `yaml:"number,omitempty"`
		Mode     string `yaml:"mode,omitempty"`         // control-message arg mode: int, float, "" = auto
		Offsets  []int  `yaml:"offsets,flow,omitempty"` // color fixture channel offsets
	}

	// Clip is the audio payload of a KindAudio track: one file reference
	// plus the per-clip mixing parameters the engine needs.
	Clip struct {
		Path       string  `yaml:"path"`
		Gain       float64 `yaml:"gain"`
		Start      float64 `yaml:"start,omitempty"`      // seconds into the project
		ChannelMap []int   `yaml:"channelMap,flow,omitempty"` // 1-based source channel per output
		Device     string  `yaml:"device,omitempty"`     // output device hint
	}

	// Track is one automation lane. Nodes are kept sorted ascending by time;
	// SampleAt relies on that invariant.
	Track struct {
		Name    string      `yaml:"name"`
		Kind    TrackKind   `yaml:"kind"`
		Min     float64     `yaml:"min"`
		Max     float64     `yaml:"max"`
		Default float64     `yaml:"default"`
		Mute    bool        `yaml:"mute,omitempty"`
		Solo    bool        `yaml:"solo,omitempty"`
		Dest    Destination `yaml:"dest,omitempty"`
		Nodes   []Node      `yaml:"nodes,omitempty"`
		Clip    *Clip       `yaml:"clip,omitempty"`
	}
)

// KindFlag and its Duration/Address node payload are editor-side data: they
// are authored and serialized for the front end's cue markers but no
// dispatch task consumes them.
const (
	KindValue TrackKind = iota
	KindFlag
	KindColor
	KindVector
	KindMIDICC
	KindMIDINote
	KindDMXChannel
	KindDMXColor
	KindAudio
	NumTrackKinds
)

var trackKindNames = [NumTrackKinds]string{
	"value", "flag", "color", "vector", "midicc", "midinote", "dmxchannel", "dmxcolor", "audio",
}

func (k TrackKind) String() string {
	if k < 0 || k >= NumTrackKinds {
		return "unknown"
	}
	return trackKindNames[k]
}

func (k TrackKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

func (k *TrackKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	for i, n := range trackKindNames {
		if n == name {
			*k = TrackKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown track kind %q", name)
}

// The easing identifiers an editor can tag a node with. Sampling honors
// CurveNone and CurveLinear; the other shapes sample as linear.
const (
	CurveLinear CurveShape = iota
	CurveNone
	CurveQuadIn
	CurveQuadOut
	CurveQuadInOut
	CurveCubicIn
	CurveCubicOut
	CurveCubicInOut
	CurveQuartIn
	CurveQuartOut
	CurveQuartInOut
	CurveQuintIn
	CurveQuintOut
	CurveQuintInOut
	CurveSineIn
	CurveSineOut
	CurveSineInOut
	CurveExpoIn
	CurveExpoOut
	CurveExpoInOut
	CurveCircIn
	CurveCircOut
	CurveCircInOut
	CurveBackIn
	CurveBackOut
	CurveBackInOut
	CurveElasticIn
	CurveElasticOut
	CurveElasticInOut
	CurveBounceIn
	CurveBounceOut
	CurveBounceInOut
	NumCurveShapes
)

var curveShapeNames = [NumCurveShapes]string{
	"linear", "none",
	"quadin", "quadout", "quadinout",
	"cubicin", "cubicout", "cubicinout",
	"quartin", "quartout", "quartinout",
	"quintin", "quintout", "quintinout",
	"sinein", "sineout", "sineinout",
	"expoin", "expoout", "expoinout",
	"circin", "circout", "circinout",
	"backin", "backout", "backinout",
	"elasticin", "elasticout", "elasticinout",
	"bouncein", "bounceout", "bounceinout",
}

func (c CurveShape) String() string {
	if c < 0 || c >= NumCurveShapes {
		return "linear"
	}
	return curveShapeNames[c]
}

func (c CurveShape) MarshalYAML() (interface{}, error) { return c.String(), nil }

func (c *CurveShape) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	for i, n := range curveShapeNames {
		if n == name {
			*c = CurveShape(i)
			return nil
		}
	}
	return fmt.Errorf("unknown curve shape %q", name)
}

func (n *Node) Copy() Node {
	values := make([]float64, len(n.Values))
	copy(values, n.Values)
	ret := *n
	ret.Values = values
	return ret
}

func (t *Track) Copy() Track {
	nodes := make([]Node, len(t.Nodes))
	for i := range t.Nodes {
		nodes[i] = t.Nodes[i].Copy()
	}
	ret := *t
	ret.Nodes = nodes
	if t.Clip != nil {
		clip := *t.Clip
		clip.ChannelMap = make([]int, len(t.Clip.ChannelMap))
		copy(clip.ChannelMap, t.Clip.ChannelMap)
		ret.Clip = &clip
	}
	return ret
}

// SortNodes restores the ascending-by-time invariant after edits. The sort is
// stable so nodes sharing a time keep their authored order.
func (t *Track) SortNodes() {
	sort.SliceStable(t.Nodes, func(i, j int) bool {
		return t.Nodes[i].Time < t.Nodes[j].Time
	})
}

// SampleAt returns the track value at time tm, interpolating between the two
// bracketing nodes and clamping at the boundaries. Before the first node (or
// with no nodes at all) the track default is returned; after the last node,
// the last node's value. The segment-start node's shape governs the segment:
// CurveNone holds the start value until the next node, everything else
// samples linearly.
func (t *Track) SampleAt(tm float64) float64 {
	if len(t.Nodes) == 0 {
		return t.clamp(t.Default)
	}
	if tm <= t.Nodes[0].Time {
		return t.clamp(t.Nodes[0].Value)
	}
	last := t.Nodes[len(t.Nodes)-1]
	if tm >= last.Time {
		return t.clamp(last.Value)
	}
	i := sort.Search(len(t.Nodes), func(i int) bool { return t.Nodes[i].Time > tm }) - 1
	a, b := t.Nodes[i], t.Nodes[i+1]
	if a.Shape == CurveNone || b.Time <= a.Time {
		return t.clamp(a.Value)
	}
	frac := (tm - a.Time) / (b.Time - a.Time)
	return t.clamp(a.Value + (b.Value-a.Value)*frac)
}

// NodeBracket returns the nodes bracketing time tm, for callers that resolve
// kind-specific payloads (e.g. color gradients) themselves. ok is false when
// the track has no nodes. Outside the node range both returns are the
// boundary node and frac is 0.
func (t *Track) NodeBracket(tm float64) (a, b Node, frac float64, ok bool) {
	if len(t.Nodes) == 0 {
		return Node{}, Node{}, 0, false
	}
	if tm <= t.Nodes[0].Time {
		return t.Nodes[0], t.Nodes[0], 0, true
	}
	last := t.Nodes[len(t.Nodes)-1]
	if tm >= last.Time {
		return last, last, 0, true
	}
	i := sort.Search(len(t.Nodes), func(i int) bool { return t.Nodes[i].Time > tm }) - 1
	a, b = t.Nodes[i], t.Nodes[i+1]
	if a.Shape == CurveNone || b.Time <= a.Time {
		return a, a, 0, true
	}
	return a, b, (tm - a.Time) / (b.Time - a.Time), true
}

// SampleVectorAt interpolates the multi-value payload of vector tracks
// element-wise, with the same boundary and shape rules as SampleAt. Elements
// missing from a node fall back to that node's scalar value.
func (t *Track) SampleVectorAt(tm float64, n int) []float64 {
	out := make([]float64, n)
	a, b, frac, ok := t.NodeBracket(tm)
	if !ok {
		for i := range out {
			out[i] = t.clamp(t.Default)
		}
		return out
	}
	elem := func(node Node, i int) float64 {
		if i < len(node.Values) {
			return node.Values[i]
		}
		return node.Value
	}
	for i := range out {
		va, vb := elem(a, i), elem(b, i)
		out[i] = t.clamp(va + (vb-va)*frac)
	}
	return out
}

func (t *Track) clamp(v float64) float64 {
	if t.Max > t.Min {
		if v < t.Min {
			return t.Min
		}
		if v > t.Max {
			return t.Max
		}
	}
	return v
}

// Active tells if the track should emit output: it must not be muted, and if
// any track of the same kind in the group is soloed, it must be one of the
// soloed ones.
func (t *Track) Active(group []Track) bool {
	if t.Mute {
		return false
	}
	if t.Solo {
		return true
	}
	for i := range group {
		if group[i].Kind == t.Kind && group[i].Solo {
			return false
		}
	}
	return true
}

// ParseColor parses a RRGGBB hex string, with an optional leading '#'.
func ParseColor(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0, errors.New("color must be 6 hex digits")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad color %q: %w", s, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// LerpColor blends two colors component-wise; frac 0 returns the first color.
func LerpColor(r1, g1, b1, r2, g2, b2 uint8, frac float64) (r, g, b uint8) {
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*frac + 0.5)
	}
	return lerp(r1, r2), lerp(g1, g2), lerp(b1, b2)
}
