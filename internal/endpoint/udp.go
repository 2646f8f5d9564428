package endpoint

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
)

const maxDatagram = 64 << 10

// udpSource binds host:port and treats every datagram as one message.
type udpSource struct {
	*lifecycle
	opts Options
	addr string

	mu   sync.Mutex
	conn net.PacketConn
	buf  []byte
}

func newUDPSource(opts Options) *udpSource {
	return &udpSource{
		lifecycle: newLifecycle(KindUDP),
		opts:      opts,
		addr:      net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		buf:       make([]byte, maxDatagram),
	}
}

func (s *udpSource) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.addr, func(ctx context.Context) error {
		var lc net.ListenConfig
		conn, err := lc.ListenPacket(ctx, "udp", s.addr)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isClosed() {
			_ = conn.Close()
			return ErrClosed
		}
		s.conn = conn
		return nil
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

// LocalAddr returns the bound address, or nil before Connect.
func (s *udpSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *udpSource) Receive(ctx context.Context) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		conn = s.conn
		s.mu.Unlock()
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	stop := interruptOnDone(ctx, conn)
	defer stop()

	n, _, err := conn.ReadFrom(s.buf)
	if err != nil {
		return nil, fmt.Errorf("udp receive: %w", ioError(ctx, s.lifecycle, err))
	}
	if n == 0 {
		return nil, io.EOF
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

func (s *udpSource) Close() error {
	return s.close(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn == nil {
			return nil
		}
		return s.conn.Close()
	})
}

// udpSink sends one datagram per message from an unconnected socket, so a
// missing listener never turns into a send error.
type udpSink struct {
	*lifecycle
	opts Options
	addr string

	mu     sync.Mutex
	conn   net.PacketConn
	remote net.Addr
}

func newUDPSink(opts Options) *udpSink {
	return &udpSink{
		lifecycle: newLifecycle(KindUDP),
		opts:      opts,
		addr:      net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
	}
}

func (s *udpSink) Connect(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := connectWithRetry(ctx, s.lifecycle, s.opts, s.addr, func(ctx context.Context) error {
		remote, err := net.ResolveUDPAddr("udp", s.addr)
		if err != nil {
			return err
		}
		network := "udp4"
		if remote.IP.To4() == nil {
			network = "udp6"
		}
		var lc net.ListenConfig
		conn, err := lc.ListenPacket(ctx, network, "")
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isClosed() {
			_ = conn.Close()
			return ErrClosed
		}
		s.conn = conn
		s.remote = remote
		return nil
	})
	if err != nil {
		return ioError(ctx, s.lifecycle, err)
	}
	return nil
}

func (s *udpSink) Send(ctx context.Context, payload []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.mu.Lock()
	conn, remote := s.conn, s.remote
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("udp %s: send before connect", s.addr)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	stop := interruptOnDone(ctx, conn)
	defer stop()

	if _, err := conn.WriteTo(payload, remote); err != nil {
		return fmt.Errorf("udp send to %s: %w", s.addr, ioError(ctx, s.lifecycle, err))
	}
	return nil
}

func (s *udpSink) Close() error {
	return s.close(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn == nil {
			return nil
		}
		return s.conn.Close()
	})
}
