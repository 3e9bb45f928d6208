// Package dispatch runs the three periodic output tasks that turn sampled
// automation into protocol messages: control messages, lighting frames and
// MIDI. The tasks are independent cooperative loops; relative skew between
// protocols is expected and no cross-protocol ordering is guaranteed.
package dispatch

import (
	"time"
)

type (
	// Broker is the centralized message hub between the host, the three
	// protocol tasks and whoever wants their status. It is many-to-one
	// communication, one channel per recipient. All sends through the broker
	// are non-blocking; a full channel drops the message rather than stalling
	// a timer loop.
	//
	// For closing goroutines, the broker has two channels for each task:
	// CloseXXX and FinishedXXX. CloseXXX has a capacity of 1, so requesting a
	// close never blocks; if the channel is already full the task is already
	// closing and dropping the request is fine. FinishedXXX is closed (never
	// sent to) when the task has fully cleaned up, so teardown can wait on it
	// with a timeout.
	Broker struct {
		ToControl  chan any
		ToLighting chan any
		ToMIDI     chan any
		ToHost     chan Alert

		CloseControl  chan struct{}
		CloseLighting chan struct{}
		CloseMIDI     chan struct{}

		FinishedControl  chan struct{}
		FinishedLighting chan struct{}
		FinishedMIDI     chan struct{}
	}

	// Alert is a status report from a task to the host: not an error return,
	// because nothing in the dispatch loops is allowed to abort on one.
	Alert struct {
		Name     string
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	None AlertPriority = iota
	Info
	Warning
	Error
)

func NewBroker() *Broker {
	return &Broker{
		ToControl:        make(chan any, 64),
		ToLighting:       make(chan any, 64),
		ToMIDI:           make(chan any, 64),
		ToHost:           make(chan Alert, 64),
		CloseControl:     make(chan struct{}, 1),
		CloseLighting:    make(chan struct{}, 1),
		CloseMIDI:        make(chan struct{}, 1),
		FinishedControl:  make(chan struct{}),
		FinishedLighting: make(chan struct{}),
		FinishedMIDI:     make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not
// full. It is guaranteed to be non-blocking. Returns true if the value was
// sent, false otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from the channel or until
// t has passed. ok is false on timeout or when the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
