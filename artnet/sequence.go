package artnet

type (
	// DestKey identifies one (host, universe) frame stream.
	DestKey struct {
		Host     string
		Universe int
	}

	// SequenceTable keeps the rolling per-destination sequence byte Art-Net
	// receivers use to discard out-of-order frames. A counter appears when
	// its destination is first addressed and is swept away once the
	// destination goes unaddressed for a cycle, so a universe that comes back
	// later restarts its stream cleanly.
	SequenceTable struct {
		counters map[DestKey]uint8
	}
)

func NewSequenceTable() *SequenceTable {
	return &SequenceTable{counters: make(map[DestKey]uint8)}
}

// Next returns the sequence byte for the next frame to key, creating the
// counter on first use. The counter wraps 255 -> 0.
func (t *SequenceTable) Next(key DestKey) uint8 {
	seq := t.counters[key]
	t.counters[key] = seq + 1
	return seq
}

// Sweep drops every counter whose destination is not in addressed.
func (t *SequenceTable) Sweep(addressed map[DestKey]bool) {
	for key := range t.counters {
		if !addressed[key] {
			delete(t.counters, key)
		}
	}
}

// Len reports the number of live destinations, for tests and status output.
func (t *SequenceTable) Len() int {
	return len(t.counters)
}
