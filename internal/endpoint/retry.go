package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"syscall"

	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"go.bug.st/serial"
)

// IsRetryable reports whether err means the counterpart is not ready yet,
// as opposed to a configuration or permission problem that waiting cannot
// fix.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.EADDRINUSE,
		syscall.ETIMEDOUT,
		syscall.ENXIO,
		syscall.EBUSY,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy, serial.PortNotFound:
			return true
		}
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// connectWithRetry calls dial until it succeeds, ctx ends, or it fails with
// an error that is not retryable. Each failed attempt prints "." to the
// indicator and waits one backoff.
func connectWithRetry(ctx context.Context, l *lifecycle, opts Options, target string, dial func(context.Context) error) error {
	l.setState(StateConnecting)
	for attempt := 0; ; attempt++ {
		if l.isClosed() {
			return ErrClosed
		}
		err := dial(ctx)
		if err == nil {
			l.setState(StateConnected)
			if attempt > 0 {
				fmt.Fprintln(opts.Indicator)
			}
			return nil
		}
		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return ctx.Err()
		}
		if !IsRetryable(err) {
			l.setState(StateDisconnected)
			return fmt.Errorf("connect %s %s: %w", l.kind, target, err)
		}
		if attempt == 0 {
			log.Printf("waiting for %s %s: %v", l.kind, target, err)
		}
		fmt.Fprint(opts.Indicator, ".")
		if err := clock.Sleep(ctx, opts.Clock, opts.Backoff); err != nil {
			l.setState(StateDisconnected)
			return err
		}
	}
}
