package audio

import "strings"

// Device describes one selectable audio output.
type Device struct {
	ID          string
	Name        string
	MaxChannels int
	Default     bool
}

// resolveDevice picks the enumerated device best matching a user hint.
// An exact id/name match always wins, then substring containment, then
// per-token hits, then a channel-count fit, falling back to the system
// default. The returned bool is false only when the list is empty.
func resolveDevice(devices []Device, hint string, channelHint int) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	fallback := devices[0]
	for _, d := range devices {
		if d.Default {
			fallback = d
			break
		}
	}
	hint = strings.TrimSpace(strings.ToLower(hint))
	if hint == "" || hint == "default" {
		return fallback, true
	}
	best, bestScore := fallback, 0
	for _, d := range devices {
		score := deviceScore(d, hint, channelHint)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best, true
}

func deviceScore(d Device, hint string, channelHint int) int {
	name := strings.ToLower(d.Name)
	id := strings.ToLower(d.ID)
	score := 0
	switch {
	case name == hint || id == hint:
		score = 1000
	case strings.Contains(name, hint):
		score = 100
	default:
		for _, tok := range strings.Fields(hint) {
			if strings.Contains(name, tok) {
				score += 10
			}
		}
	}
	if score > 0 && channelHint > 0 && d.MaxChannels >= channelHint {
		score++
	}
	return score
}
