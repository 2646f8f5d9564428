package endpoint

import (
	"context"
	"io"
	"net"
	"strconv"
)

// TCP acts as a stream client on both sides: capture reads frames from a
// server that is producing telemetry, replay writes to a server waiting for
// it.

func newTCPSource(opts Options) *streamSource {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	return &streamSource{
		lifecycle: newLifecycle(KindTCP),
		opts:      opts,
		target:    addr,
		dial: func(ctx context.Context) (io.ReadCloser, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

func newTCPSink(opts Options) *streamSink {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	return &streamSink{
		lifecycle: newLifecycle(KindTCP),
		opts:      opts,
		target:    addr,
		dial: func(ctx context.Context) (io.WriteCloser, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}
}
