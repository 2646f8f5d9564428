package endpoint

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const serialReadTimeout = 100 * time.Millisecond

// portReader turns the serial port's timed reads into a blocking Read that
// still notices cancellation between timeouts.
type portReader struct {
	serial.Port

	mu  sync.Mutex
	ctx context.Context
}

func (p *portReader) setContext(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

func (p *portReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	for {
		n, err := p.Port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if ctx != nil && ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
}

func openSerial(device string, baud int) (serial.Port, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return port, nil
}

func newSerialSource(opts Options) *streamSource {
	target := fmt.Sprintf("%s@%d", opts.Device, opts.Baud)
	return &streamSource{
		lifecycle: newLifecycle(KindSerial),
		opts:      opts,
		target:    target,
		dial: func(ctx context.Context) (io.ReadCloser, error) {
			port, err := openSerial(opts.Device, opts.Baud)
			if err != nil {
				return nil, err
			}
			if err := port.SetReadTimeout(serialReadTimeout); err != nil {
				_ = port.Close()
				return nil, fmt.Errorf("set read timeout: %w", err)
			}
			return &portReader{Port: port}, nil
		},
	}
}

func newSerialSink(opts Options) *streamSink {
	target := fmt.Sprintf("%s@%d", opts.Device, opts.Baud)
	return &streamSink{
		lifecycle: newLifecycle(KindSerial),
		opts:      opts,
		target:    target,
		dial: func(ctx context.Context) (io.WriteCloser, error) {
			return openSerial(opts.Device, opts.Baud)
		},
	}
}
