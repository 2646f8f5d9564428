package endpoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
)

// stdioSink decodes each message and prints "{count}: {summary}".
type stdioSink struct {
	*lifecycle
	opts Options

	mu    sync.Mutex
	count int
}

type hexDescriber struct{}

func (hexDescriber) Describe(raw []byte) string {
	return hex.EncodeToString(raw)
}

func newStdioSink(opts Options) (*stdioSink, error) {
	if opts.Decoder == nil {
		dec, err := mavlink.NewDecoder()
		if err != nil {
			log.Printf("stdio: mavlink decoder unavailable, printing hex: %v", err)
			opts.Decoder = hexDescriber{}
		} else {
			opts.Decoder = dec
		}
	}
	return &stdioSink{lifecycle: newLifecycle(KindStdio), opts: opts}, nil
}

func (s *stdioSink) Connect(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.setState(StateConnected)
	return ctx.Err()
}

func (s *stdioSink) Send(ctx context.Context, payload []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if _, err := fmt.Fprintf(s.opts.Stdout, "%d: %s\n", s.count, s.opts.Decoder.Describe(payload)); err != nil {
		return fmt.Errorf("stdio send: %w", err)
	}
	return nil
}

func (s *stdioSink) Close() error {
	return s.close(nil)
}
