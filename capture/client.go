// Package capture talks to the capture worker process that owns the
// incoming-signal sockets. The worker offloads socket I/O and
// timestamping; this client multiplexes request/response calls over a
// single JSON-lines connection and polls the worker's buffer so capture
// volume larger than consumption shows up as a drop counter instead of
// unbounded memory.
package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// SpawnFunc starts (or restarts) the worker and returns its connection.
// The client calls it lazily: on the first call and again after the
// worker dies.
type SpawnFunc func() (io.ReadWriteCloser, error)

type (
	request struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params,omitempty"`
	}

	response struct {
		ID     int64           `json:"id"`
		Error  string          `json:"error,omitempty"`
		Result json.RawMessage `json:"result,omitempty"`
	}

	outcome struct {
		result json.RawMessage
		err    error
	}

	Client struct {
		spawn SpawnFunc

		mu      sync.Mutex
		conn    io.ReadWriteCloser
		enc     *json.Encoder
		nextID  int64
		pending map[int64]chan outcome
	}
)

// ErrWorkerDied rejects every call that was in flight when the worker's
// connection broke.
var ErrWorkerDied = errors.New("capture worker died")

func NewClient(spawn SpawnFunc) *Client {
	return &Client{spawn: spawn, pending: make(map[int64]chan outcome)}
}

// Call sends one request and blocks until its reply arrives or the worker
// dies. Every call resolves or rejects exactly once; a dead worker is
// respawned on the next call, not here.
func (c *Client) Call(method string, params, result any) error {
	c.mu.Lock()
	if err := c.ensureWorkerLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan outcome, 1)
	c.pending[id] = ch
	err := c.enc.Encode(request{ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.failLocked(fmt.Errorf("writing to capture worker: %w", err))
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	out := <-ch
	if out.err != nil {
		return out.err
	}
	if result != nil && out.result != nil {
		if err := json.Unmarshal(out.result, result); err != nil {
			return fmt.Errorf("decoding %s reply: %w", method, err)
		}
	}
	return nil
}

// Close tears the connection down and rejects everything in flight.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.failLocked(ErrWorkerDied)
	return err
}

func (c *Client) ensureWorkerLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.spawn()
	if err != nil {
		return fmt.Errorf("spawning capture worker: %w", err)
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	go c.readLoop(conn)
	return nil
}

// readLoop owns the read side of one worker incarnation. It exits when
// the connection breaks, rejecting all outstanding calls so no caller
// ever hangs on a dead worker.
func (c *Client) readLoop(conn io.ReadWriteCloser) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var resp response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue // garbage line, not fatal
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			continue // already resolved or unknown id
		}
		if resp.Error != "" {
			ch <- outcome{err: errors.New(resp.Error)}
		} else {
			ch <- outcome{result: resp.Result}
		}
	}
	c.mu.Lock()
	if c.conn == conn {
		c.failLocked(ErrWorkerDied)
	}
	c.mu.Unlock()
}

func (c *Client) failLocked(err error) {
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- outcome{err: err}
	}
	c.conn = nil
	c.enc = nil
}
