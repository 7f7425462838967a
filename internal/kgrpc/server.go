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

	"golang.org/x/sync/errgroup"
)

const maxLineBytes = 8 << 20

// Handler executes one method call. Returning a *RemoteError controls the
// error code seen by the caller; any other error is reported as internal.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return f(ctx, method, params)
}

type Server struct {
	handler     Handler
	maxInFlight int
	log         *log.Logger
}

func NewServer(h Handler, maxInFlight int, logger *log.Logger) *Server {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{handler: h, maxInFlight: maxInFlight, log: logger}
}

// Serve reads requests from r until EOF or ctx is done and writes responses
// to w. Requests run concurrently up to maxInFlight; responses may be written
// out of order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxInFlight)

	var wmu sync.Mutex
	enc := json.NewEncoder(w)
	write := func(resp Response) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := enc.Encode(resp); err != nil {
			s.log.Printf("kgrpc server status=error op=write id=%d err=%v", resp.ID, err)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var readErr error
	for sc.Scan() {
		if gctx.Err() != nil {
			break
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Printf("kgrpc server status=error op=decode err=%v", err)
			write(Response{Error: NewError(CodeInvalidParams, "malformed request: %v", err)})
			continue
		}
		g.Go(func() error {
			write(s.dispatch(gctx, req))
			return nil
		})
	}
	if err := sc.Err(); err != nil {
		readErr = fmt.Errorf("kgrpc server: read: %w", err)
	}

	_ = g.Wait()
	return readErr
}

func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	resp.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("kgrpc server status=error op=%s id=%d reason=panic err=%v", req.Method, req.ID, r)
			resp = Response{ID: req.ID, Error: NewError(CodeInternal, "internal error")}
		}
	}()

	result, err := s.handler.Handle(ctx, req.Method, req.Params)
	if err != nil {
		var re *RemoteError
		if !errors.As(err, &re) {
			s.log.Printf("kgrpc server status=error op=%s id=%d err=%v", req.Method, req.ID, err)
			re = NewError(CodeInternal, "%v", err)
		}
		resp.Error = re
		return resp
	}

	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = NewError(CodeInternal, "encode result: %v", err)
		return resp
	}
	resp.Result = raw
	return resp
}
