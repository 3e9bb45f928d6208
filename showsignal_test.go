package showsignal_test

import (
	"math"
	"testing"

	"github.com/luminet/showsignal"
)

func rampTrack(shape showsignal.CurveShape) showsignal.Track {
	return showsignal.Track{
		Name: "ramp", Kind: showsignal.KindValue, Min: 0, Max: 10, Default: 5,
		Nodes: []showsignal.Node{
			{Time: 1, Value: 2, Shape: shape},
			{Time: 3, Value: 8},
			{Time: 5, Value: 4},
		},
	}
}

func TestSampleAt(t *testing.T) {
	track := rampTrack(showsignal.CurveLinear)
	cases := []struct {
		time, want float64
	}{
		{-1, 2}, // before first node clamps to it
		{1, 2},
		{2, 5}, // halfway up the first segment
		{3, 8},
		{4, 6},
		{5, 4},
		{99, 4}, // after last node holds
	}
	for _, c := range cases {
		if got := track.SampleAt(c.time); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("SampleAt(%v): got %v, want %v", c.time, got, c.want)
		}
	}
	empty := showsignal.Track{Kind: showsignal.KindValue, Min: 0, Max: 10, Default: 5}
	if got := empty.SampleAt(2); got != 5 {
		t.Errorf("empty track should sample its default, got %v", got)
	}
}

func TestSampleAtStepShape(t *testing.T) {
	track := rampTrack(showsignal.CurveNone)
	if got := track.SampleAt(2.9); got != 2 {
		t.Errorf("step segment should hold its start value, got %v", got)
	}
	if got := track.SampleAt(3); got != 8 {
		t.Errorf("step segment should switch at the next node, got %v", got)
	}
}

func TestSampleAtClampsToRange(t *testing.T) {
	track := showsignal.Track{
		Kind: showsignal.KindValue, Min: 0, Max: 1,
		Nodes: []showsignal.Node{{Time: 0, Value: -5}, {Time: 1, Value: 5}},
	}
	if got := track.SampleAt(0); got != 0 {
		t.Errorf("below-range value should clamp to min, got %v", got)
	}
	if got := track.SampleAt(1); got != 1 {
		t.Errorf("above-range value should clamp to max, got %v", got)
	}
}

func TestNodeBracket(t *testing.T) {
	track := rampTrack(showsignal.CurveLinear)
	a, b, frac, ok := track.NodeBracket(2)
	if !ok || a.Time != 1 || b.Time != 3 || math.Abs(frac-0.5) > 1e-12 {
		t.Errorf("bracket at 2: a=%v b=%v frac=%v ok=%v", a.Time, b.Time, frac, ok)
	}
	a, b, frac, ok = track.NodeBracket(7)
	if !ok || a.Time != 5 || b.Time != 5 || frac != 0 {
		t.Errorf("bracket past the end: a=%v b=%v frac=%v ok=%v", a.Time, b.Time, frac, ok)
	}
	empty := showsignal.Track{}
	if _, _, _, ok := empty.NodeBracket(0); ok {
		t.Error("empty track should report no bracket")
	}
}

func TestSampleVectorAt(t *testing.T) {
	track := showsignal.Track{
		Kind: showsignal.KindVector, Min: 0, Max: 100,
		Nodes: []showsignal.Node{
			{Time: 0, Value: 1, Values: []float64{0, 10}},
			{Time: 2, Value: 3, Values: []float64{10, 30}},
		},
	}
	got := track.SampleVectorAt(1, 3)
	want := []float64{5, 20, 2} // third element falls back to the scalar value
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestActiveMuteSolo(t *testing.T) {
	tracks := []showsignal.Track{
		{Name: "a", Kind: showsignal.KindValue},
		{Name: "b", Kind: showsignal.KindValue, Solo: true},
		{Name: "c", Kind: showsignal.KindValue, Mute: true, Solo: true},
		{Name: "d", Kind: showsignal.KindMIDICC},
	}
	want := map[string]bool{
		"a": false, // excluded by b's solo
		"b": true,
		"c": false, // mute wins over solo
		"d": true,  // different kind, unaffected by the solo
	}
	for i := range tracks {
		if got := tracks[i].Active(tracks); got != want[tracks[i].Name] {
			t.Errorf("track %s: active=%v, want %v", tracks[i].Name, got, want[tracks[i].Name])
		}
	}
}

func TestTrackCopyIsDeep(t *testing.T) {
	orig := showsignal.Track{
		Name: "t", Kind: showsignal.KindAudio,
		Nodes: []showsignal.Node{{Time: 1, Values: []float64{1, 2}}},
		Clip:  &showsignal.Clip{Path: "a.wav", ChannelMap: []int{1, 2}},
	}
	cp := orig.Copy()
	cp.Nodes[0].Values[0] = 99
	cp.Clip.ChannelMap[0] = 99
	if orig.Nodes[0].Values[0] == 99 || orig.Clip.ChannelMap[0] == 99 {
		t.Error("Copy should not share node payloads or clip data")
	}
}

func TestSortNodesStable(t *testing.T) {
	track := showsignal.Track{Nodes: []showsignal.Node{
		{Time: 2, Value: 1},
		{Time: 0, Value: 2},
		{Time: 2, Value: 3},
	}}
	track.SortNodes()
	if track.Nodes[0].Time != 0 || track.Nodes[1].Value != 1 || track.Nodes[2].Value != 3 {
		t.Errorf("sorted nodes: %+v", track.Nodes)
	}
}

func TestParseColor(t *testing.T) {
	r, g, b, err := showsignal.ParseColor("#ff8001")
	if err != nil || r != 0xff || g != 0x80 || b != 0x01 {
		t.Errorf("ParseColor: %d %d %d %v", r, g, b, err)
	}
	if _, _, _, err := showsignal.ParseColor("red"); err == nil {
		t.Error("expected an error for a non-hex color")
	}
	if _, _, _, err := showsignal.ParseColor("ffff"); err == nil {
		t.Error("expected an error for a short color")
	}
}

func TestLerpColor(t *testing.T) {
	r, g, b := showsignal.LerpColor(0, 100, 200, 100, 100, 0, 0.5)
	if r != 50 || g != 100 || b != 100 {
		t.Errorf("LerpColor midpoint: %d %d %d", r, g, b)
	}
	r, _, _ = showsignal.LerpColor(10, 0, 0, 20, 0, 0, 0)
	if r != 10 {
		t.Errorf("frac 0 should return the first color, got %d", r)
	}
}
