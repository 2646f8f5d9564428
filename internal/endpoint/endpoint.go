// Package endpoint binds capture and replay to concrete transports. Every
// endpoint owns exactly one OS resource and is used by a single goroutine;
// only Close may be called concurrently with Receive or Send.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
)

// Kind names a transport.
type Kind string

const (
	KindPipe   Kind = "pipe"
	KindTCP    Kind = "tcp"
	KindUDP    Kind = "udp"
	KindSerial Kind = "serial"
	KindRedis  Kind = "redis"
	KindStdio  Kind = "stdio"
)

// Kinds lists every transport in a stable order.
var Kinds = []Kind{KindPipe, KindTCP, KindUDP, KindSerial, KindRedis, KindStdio}

// ParseKind converts a flag value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown endpoint kind %q (valid: pipe, tcp, udp, serial, redis, stdio)", s)
}

// State is the connection lifecycle of an endpoint.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrClosed is returned by operations on a closed endpoint.
var ErrClosed = errors.New("endpoint: closed")

// Source is the capture side of a transport.
type Source interface {
	Kind() Kind
	State() State
	// Connect blocks until the transport is usable, retrying while the
	// counterpart is not ready.
	Connect(ctx context.Context) error
	// Receive blocks for one message. io.EOF reports an empty result or the
	// end of the current stream; the next call reconnects where that makes
	// sense for the transport.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink is the replay side of a transport.
type Sink interface {
	Kind() Kind
	State() State
	Connect(ctx context.Context) error
	// Send writes one message's bytes verbatim.
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Describer renders a raw message for humans.
type Describer interface {
	Describe(raw []byte) string
}

const (
	DefaultBackoff      = time.Second
	DefaultRedisChannel = "mavtape"
)

// Options carries the settings for every transport kind. Each endpoint
// reads only the fields relevant to it.
type Options struct {
	Host     string
	Port     int
	PipePath string
	Device   string
	Baud     int

	RedisAddr     string
	RedisChannel  string
	RedisPassword string
	RedisDB       int

	// Backoff is the pause between connect attempts.
	Backoff time.Duration
	// Indicator receives one "." per failed connect attempt.
	Indicator io.Writer
	// Stdout and Decoder are used by the stdio sink.
	Stdout  io.Writer
	Decoder Describer
	// Verifier filters candidate frames on stream sources (TCP, pipe,
	// serial). Nil accepts every well-formed candidate.
	Verifier mavlink.Verifier
	Clock    clock.Clock
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Indicator == nil {
		o.Indicator = os.Stderr
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Clock == nil {
		o.Clock = clock.NewRealClock()
	}
	if o.RedisChannel == "" {
		o.RedisChannel = DefaultRedisChannel
	}
	if o.RedisAddr == "" {
		o.RedisAddr = "localhost:6379"
	}
	return o
}

// NewSource builds an unconnected capture endpoint.
func NewSource(kind Kind, opts Options) (Source, error) {
	opts = opts.withDefaults()
	switch kind {
	case KindPipe:
		if opts.PipePath == "" {
			return nil, errors.New("pipe endpoint requires a path")
		}
		return newPipeSource(opts), nil
	case KindTCP:
		if err := validPort(opts.Port); err != nil {
			return nil, err
		}
		return newTCPSource(opts), nil
	case KindUDP:
		if err := validPort(opts.Port); err != nil {
			return nil, err
		}
		return newUDPSource(opts), nil
	case KindSerial:
		if err := validSerial(opts); err != nil {
			return nil, err
		}
		return newSerialSource(opts), nil
	case KindRedis:
		return newRedisSource(opts), nil
	case KindStdio:
		return nil, errors.New("stdio can only be used as a replay sink")
	default:
		return nil, fmt.Errorf("unknown endpoint kind %q", kind)
	}
}

// NewSink builds an unconnected replay endpoint.
func NewSink(kind Kind, opts Options) (Sink, error) {
	opts = opts.withDefaults()
	switch kind {
	case KindPipe:
		if opts.PipePath == "" {
			return nil, errors.New("pipe endpoint requires a path")
		}
		return newPipeSink(opts), nil
	case KindTCP:
		if err := validPort(opts.Port); err != nil {
			return nil, err
		}
		return newTCPSink(opts), nil
	case KindUDP:
		if err := validPort(opts.Port); err != nil {
			return nil, err
		}
		return newUDPSink(opts), nil
	case KindSerial:
		if err := validSerial(opts); err != nil {
			return nil, err
		}
		return newSerialSink(opts), nil
	case KindRedis:
		return newRedisSink(opts), nil
	case KindStdio:
		return newStdioSink(opts)
	default:
		return nil, fmt.Errorf("unknown endpoint kind %q", kind)
	}
}

func validPort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", p)
	}
	return nil
}

func validSerial(o Options) error {
	if o.Device == "" {
		return errors.New("serial endpoint requires a device")
	}
	if o.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", o.Baud)
	}
	return nil
}

// lifecycle holds the state and close bookkeeping shared by all endpoints.
type lifecycle struct {
	kind      Kind
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newLifecycle(kind Kind) *lifecycle {
	return &lifecycle{kind: kind, done: make(chan struct{})}
}

func (l *lifecycle) Kind() Kind {
	return l.kind
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

func (l *lifecycle) setState(s State) {
	// Closed is terminal.
	for {
		cur := l.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if l.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (l *lifecycle) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// close runs release exactly once and marks the endpoint closed.
func (l *lifecycle) close(release func() error) error {
	l.closeOnce.Do(func() {
		l.state.Store(int32(StateClosed))
		close(l.done)
		if release != nil {
			l.closeErr = release()
		}
	})
	return l.closeErr
}

// opContext derives a context that is also cancelled when the endpoint is
// closed, so blocked operations observe Close.
func (l *lifecycle) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// deadliner is implemented by net.Conn, *os.File and net.PacketConn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// interruptOnDone unblocks I/O on c when ctx ends by moving its deadline
// into the past. The returned func must be called once the I/O returns.
func interruptOnDone(ctx context.Context, c deadliner) func() {
	_ = c.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Now())
	})
	return func() { stop() }
}

// ioError prefers the context's error when I/O failed because of it.
func ioError(ctx context.Context, l *lifecycle, err error) error {
	if l.isClosed() {
		return ErrClosed
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
