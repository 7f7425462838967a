package kgrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair wires a Client to a Server through two in-memory pipes.
func pair(t *testing.T, h Handler) (*Client, func()) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	srv := NewServer(h, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, reqR, respW)
		_ = respW.Close()
	}()

	c := NewClient(respR, reqW, nil)
	return c, func() {
		cancel()
		_ = reqW.Close()
		<-done
	}
}

func echo(_ context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "echo":
		var p map[string]any
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "missing":
		return nil, NewError(CodeNotFound, "nothing here")
	case "boom":
		return nil, errors.New("disk on fire")
	case "panic":
		panic("bad")
	}
	return nil, NewError(CodeUnknownMethod, "unknown method %q", method)
}

func TestCall_RoundTrip(t *testing.T) {
	c, stop := pair(t, HandlerFunc(echo))
	defer stop()

	var out map[string]any
	require.NoError(t, c.Call(context.Background(), "echo", map[string]any{"skill": "docker"}, &out))
	assert.Equal(t, "docker", out["skill"])
}

func TestCall_ConcurrentCallsAreMatchedById(t *testing.T) {
	c, stop := pair(t, HandlerFunc(echo))
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]any
			err := c.Call(context.Background(), "echo", map[string]any{"n": fmt.Sprint(i)}, &out)
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), out["n"])
		}(i)
	}
	wg.Wait()
}

func TestCall_RemoteErrors(t *testing.T) {
	c, stop := pair(t, HandlerFunc(echo))
	defer stop()
	ctx := context.Background()

	err := c.Call(ctx, "missing", nil, nil)
	assert.True(t, IsCode(err, CodeNotFound))

	err = c.Call(ctx, "boom", nil, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, CodeInternal, re.Code)
	assert.Contains(t, re.Message, "disk on fire")

	err = c.Call(ctx, "panic", nil, nil)
	assert.True(t, IsCode(err, CodeInternal))

	err = c.Call(ctx, "nope", nil, nil)
	assert.True(t, IsCode(err, CodeUnknownMethod))
}

func TestCall_DeadlineDoesNotWaitForSlowHandler(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, _ string, _ json.RawMessage) (any, error) {
		<-release
		return "late", nil
	})
	c, stop := pair(t, h)
	defer stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Call(ctx, "slow", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCall_DeadlineHoldsWhenPeerStopsReading(t *testing.T) {
	respR, respW := io.Pipe()
	reqR, reqW := io.Pipe()
	c := NewClient(respR, reqW, nil)
	defer func() {
		_ = reqR.Close()
		_ = respW.Close()
	}()

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		start := time.Now()
		err := c.Call(ctx, MethodAddNode, AddNodeParams{Key: "skill_go", Type: "skill"}, nil)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	}
	assert.Equal(t, int64(3), c.ConsecutiveTimeouts())
}

func TestCall_AnswerResetsTimeoutCount(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, method string, _ json.RawMessage) (any, error) {
		if method == "slow" {
			<-release
		}
		return "ok", nil
	})
	c, stop := pair(t, h)
	defer stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Call(ctx, "slow", nil, nil), context.DeadlineExceeded)
	assert.Equal(t, int64(1), c.ConsecutiveTimeouts())

	require.NoError(t, c.Call(context.Background(), "fast", nil, nil))
	assert.Equal(t, int64(0), c.ConsecutiveTimeouts())
}

func TestProcessTransport_ReplacesHungWorker(t *testing.T) {
	bin, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	p := NewProcessTransport(bin, []string{"30"}, log.New(io.Discard, "", 0))
	p.MaxTimeouts = 2
	defer p.Close()

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		err := p.Call(ctx, MethodPing, nil, nil)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, int64(1), p.Restarts())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Call(ctx, MethodPing, nil, nil), context.DeadlineExceeded)
	assert.Equal(t, int64(1), p.Restarts())
}

func TestCall_ClosedStream(t *testing.T) {
	r, w := io.Pipe()
	c := NewClient(r, io.Discard, nil)
	require.NoError(t, w.Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe closed stream")
	}
	err := c.Call(context.Background(), MethodPing, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestServer_MalformedLine(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	srv := NewServer(HandlerFunc(echo), 1, nil)
	go func() {
		_ = srv.Serve(context.Background(), reqR, respW)
		_ = respW.Close()
	}()

	go func() {
		_, _ = reqW.Write([]byte("{not json\n"))
		_ = reqW.Close()
	}()

	var resp Response
	require.NoError(t, json.NewDecoder(respR).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}
