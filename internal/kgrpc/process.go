package kgrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
)

// DefaultMaxTimeouts is how many calls in a row may hit their deadline before
// a live worker is treated as hung and replaced.
const DefaultMaxTimeouts = 3

// ProcessTransport runs the graph worker as a long-lived child process and
// talks to it over stdin/stdout. The worker is started on first use and
// restarted on the next call after it exits or stops answering.
type ProcessTransport struct {
	bin  string
	args []string
	log  *log.Logger

	// MaxTimeouts overrides DefaultMaxTimeouts when positive.
	MaxTimeouts int
	restarts    atomic.Int64

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	client *Client
	closed bool
}

func NewProcessTransport(bin string, args []string, logger *log.Logger) *ProcessTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &ProcessTransport{bin: bin, args: append([]string(nil), args...), log: logger}
}

func (p *ProcessTransport) Call(ctx context.Context, method string, params any, out any) error {
	c, err := p.ensure()
	if err != nil {
		return err
	}
	err = c.Call(ctx, method, params, out)
	if errors.Is(err, context.DeadlineExceeded) && c.ConsecutiveTimeouts() >= int64(p.maxTimeouts()) {
		p.replace(c)
	}
	return err
}

func (p *ProcessTransport) maxTimeouts() int {
	if p.MaxTimeouts > 0 {
		return p.MaxTimeouts
	}
	return DefaultMaxTimeouts
}

// replace kills the worker behind c unless another caller already did.
func (p *ProcessTransport) replace(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != c || p.closed {
		return
	}
	pid := 0
	if p.cmd != nil && p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}
	p.log.Printf("kgworker status=restart bin=%s pid=%d reason=unresponsive timeouts=%d", p.bin, pid, c.ConsecutiveTimeouts())
	p.stopLocked()
	p.restarts.Add(1)
}

// Restarts reports how many hung workers have been replaced.
func (p *ProcessTransport) Restarts() int64 {
	return p.restarts.Load()
}

func (p *ProcessTransport) ensure() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.client != nil {
		select {
		case <-p.client.Done():
			p.log.Printf("kgworker status=restart bin=%s", p.bin)
			p.stopLocked()
		default:
			return p.client, nil
		}
	}

	cmd := exec.Command(p.bin, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("kgworker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("kgworker: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("kgworker: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("kgworker: start %s: %w", p.bin, err)
	}
	p.log.Printf("kgworker status=started bin=%s pid=%d", p.bin, cmd.Process.Pid)

	go p.forwardStderr(stderr)

	client := NewClient(stdout, stdin, p.log)
	go func() {
		<-client.Done()
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || !p.isClosed() {
				p.log.Printf("kgworker status=exited pid=%d err=%v", cmd.Process.Pid, err)
			}
			return
		}
		p.log.Printf("kgworker status=exited pid=%d", cmd.Process.Pid)
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.client = client
	return client, nil
}

func (p *ProcessTransport) forwardStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.log.Printf("kgworker stderr: %s", sc.Text())
	}
}

func (p *ProcessTransport) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *ProcessTransport) stopLocked() {
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.stdin = nil
	p.client = nil
}

// Close stops the worker. Later calls fail with ErrClosed.
func (p *ProcessTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopLocked()
	return nil
}
