package kgrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// Client multiplexes concurrent calls over a single request/response stream.
// Requests are written by one writer goroutine so a stalled peer never holds
// a caller past its context.
type Client struct {
	w      io.Writer
	log    *log.Logger
	writes chan writeRequest

	mu      sync.Mutex
	pending map[uint64]chan Response
	nextID  atomic.Uint64

	done    chan struct{}
	closeMu sync.Once
	err     error

	timeouts atomic.Int64
}

type writeRequest struct {
	line []byte
	errc chan error
}

// NewClient starts reading responses from r. Requests are written to w.
func NewClient(r io.Reader, w io.Writer, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	c := &Client{
		w:       w,
		log:     logger,
		writes:  make(chan writeRequest),
		pending: map[uint64]chan Response{},
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case req := <-c.writes:
			_, err := c.w.Write(req.line)
			req.errc <- err
			if err != nil {
				c.shutdown(fmt.Errorf("%w: write: %v", ErrClosed, err))
				return
			}
		}
	}
}

func (c *Client) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		var resp Response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			c.log.Printf("kgrpc client status=error op=decode err=%v", err)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			continue
		}
		ch <- resp
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
}

func (c *Client) shutdown(err error) {
	c.closeMu.Do(func() {
		c.mu.Lock()
		c.err = err
		c.pending = map[uint64]chan Response{}
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the response stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ConsecutiveTimeouts counts calls that hit their deadline since the last
// answered call. A peer that is alive but no longer answering keeps it growing.
func (c *Client) ConsecutiveTimeouts() int64 {
	return c.timeouts.Load()
}

// Call sends one request and decodes the result into out (which may be nil).
// It returns when the response arrives, ctx is done or the stream closes.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("kgrpc: encode params: %w", err)
		}
		raw = b
	}

	id := c.nextID.Add(1)
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(Request{ID: id, Method: method, Params: raw})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("kgrpc: encode request: %w", err)
	}
	line = append(line, '\n')

	errc := make(chan error, 1)
	select {
	case c.writes <- writeRequest{line: line, errc: errc}:
	case <-ctx.Done():
		c.forget(id)
		return c.abandon(ctx.Err())
	case <-c.done:
		c.forget(id)
		return c.closedErr()
	}

	for {
		select {
		case err := <-errc:
			if err != nil {
				c.forget(id)
				return fmt.Errorf("%w: write: %v", ErrClosed, err)
			}
			errc = nil
		case <-ctx.Done():
			c.forget(id)
			return c.abandon(ctx.Err())
		case <-c.done:
			select {
			case resp := <-ch:
				c.timeouts.Store(0)
				return decodeResult(resp, out)
			default:
			}
			return c.closedErr()
		case resp := <-ch:
			c.timeouts.Store(0)
			return decodeResult(resp, out)
		}
	}
}

func (c *Client) abandon(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.timeouts.Add(1)
	}
	return err
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func decodeResult(resp Response, out any) error {
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return NewError(CodeInternal, "decode result: %v", err)
	}
	return nil
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
