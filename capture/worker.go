package capture

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// RecordingConfig mirrors the worker's set-recording-config parameters.
type RecordingConfig struct {
	Armed         bool    `json:"armed"`
	Playing       bool    `json:"playing"`
	FPS           float64 `json:"fps"`
	ProjectLength float64 `json:"projectLength"`
	StartWallMs   int64   `json:"startWallMs"`
	StartPlayhead float64 `json:"startPlayhead"`
}

// DrainResult is one drain-buffer reply: the captured items, how many the
// worker still holds, and how many it had to drop since the last drain.
type DrainResult struct {
	Items     []json.RawMessage `json:"items"`
	Remaining int               `json:"remaining"`
	Dropped   int               `json:"dropped"`
}

func (c *Client) StartListener(port int) error {
	return c.Call("start-listener", map[string]int{"port": port}, nil)
}

func (c *Client) StopListener() error {
	return c.Call("stop-listener", nil, nil)
}

func (c *Client) SetRecordingConfig(cfg RecordingConfig) error {
	return c.Call("set-recording-config", cfg, nil)
}

func (c *Client) DrainBuffer(limit int) (DrainResult, error) {
	var res DrainResult
	err := c.Call("drain-buffer", map[string]int{"limit": limit}, &res)
	return res, err
}

// Poller drains the worker's buffer on a fixed short interval and hands
// every item to the handler. Drops reported by the worker accumulate in a
// counter instead of being hidden.
type Poller struct {
	client   *Client
	interval time.Duration
	limit    int
	handle   func(json.RawMessage)
	dropped  atomic.Int64
	close    chan struct{}
	finished chan struct{}
}

func NewPoller(client *Client, interval time.Duration, limit int, handle func(json.RawMessage)) *Poller {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if limit <= 0 {
		limit = 256
	}
	return &Poller{
		client:   client,
		interval: interval,
		limit:    limit,
		handle:   handle,
		close:    make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go p.run()
}

// Stop idles the poll loop and waits for it to finish.
func (p *Poller) Stop() {
	select {
	case p.close <- struct{}{}:
	default:
	}
	<-p.finished
}

// Dropped is the total number of items the worker discarded because
// capture outpaced draining.
func (p *Poller) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Poller) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.close:
			return
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

func (p *Poller) drainOnce() {
	for {
		res, err := p.client.DrainBuffer(p.limit)
		if err != nil {
			return // worker gone, next tick respawns through the client
		}
		p.dropped.Add(int64(res.Dropped))
		for _, item := range res.Items {
			p.handle(item)
		}
		if res.Remaining == 0 {
			return
		}
	}
}
