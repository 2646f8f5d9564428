package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
)

// contextReader is implemented by readers that cannot be interrupted with a
// deadline and instead poll the context they were handed.
type contextReader interface {
	setContext(ctx context.Context)
}

// streamSource receives frames from a byte stream (TCP, pipe, serial). When
// the stream ends it drops the connection, reports io.EOF, and reconnects
// on the next Receive.
type streamSource struct {
	*lifecycle
	opts   Options
	target string
	dial   func(ctx context.Context) (io.ReadCloser, error)

	mu     sync.Mutex
	rc     io.ReadCloser
	frames *mavlink.Reader
}

func (s *streamSource) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.target, func(ctx context.Context) error {
		rc, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isClosed() {
			_ = rc.Close()
			return ErrClosed
		}
		s.rc = rc
		s.frames = mavlink.NewReader(rc, s.opts.Verifier)
		return nil
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

func (s *streamSource) Receive(ctx context.Context) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	rc, frames := s.rc, s.frames
	s.mu.Unlock()
	if rc == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		rc, frames = s.rc, s.frames
		s.mu.Unlock()
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if d, ok := rc.(deadliner); ok {
		stop := interruptOnDone(ctx, d)
		defer stop()
	}
	if cr, ok := rc.(contextReader); ok {
		cr.setContext(ctx)
	}

	frame, err := frames.Next()
	if err == nil {
		return frame, nil
	}
	if s.isClosed() || ctx.Err() != nil {
		return nil, ioError(ctx, s.lifecycle, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || IsRetryable(err) {
		log.Printf("%s %s: stream ended (%v), reconnecting on next receive", s.kind, s.target, err)
		s.drop(rc)
		return nil, io.EOF
	}
	return nil, fmt.Errorf("%s receive: %w", s.kind, err)
}

func (s *streamSource) drop(rc io.ReadCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rc == rc {
		_ = rc.Close()
		s.rc = nil
		s.frames = nil
		s.setState(StateDisconnected)
	}
}

func (s *streamSource) Close() error {
	return s.close(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.rc == nil {
			return nil
		}
		err := s.rc.Close()
		s.rc = nil
		return err
	})
}

// streamSink writes raw bytes to a byte stream. Send failures are returned
// to the caller; the sink does not reconnect mid-replay.
type streamSink struct {
	*lifecycle
	opts    Options
	target  string
	dial    func(ctx context.Context) (io.WriteCloser, error)
	cleanup func() error

	mu sync.Mutex
	wc io.WriteCloser
}

func (s *streamSink) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.target, func(ctx context.Context) error {
		wc, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isClosed() {
			_ = wc.Close()
			return ErrClosed
		}
		s.wc = wc
		return nil
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

func (s *streamSink) Send(ctx context.Context, payload []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.mu.Lock()
	wc := s.wc
	s.mu.Unlock()
	if wc == nil {
		return fmt.Errorf("%s %s: send before connect", s.kind, s.target)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if d, ok := wc.(deadliner); ok {
		stop := interruptOnDone(ctx, d)
		defer stop()
	}

	for len(payload) > 0 {
		n, err := wc.Write(payload)
		if err != nil {
			s.setState(StateDisconnected)
			return fmt.Errorf("%s send to %s: %w", s.kind, s.target, ioError(ctx, s.lifecycle, err))
		}
		payload = payload[n:]
	}
	return nil
}

func (s *streamSink) Close() error {
	return s.close(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var err error
		if s.wc != nil {
			err = s.wc.Close()
			s.wc = nil
		}
		if s.cleanup != nil {
			if cerr := s.cleanup(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	})
}
