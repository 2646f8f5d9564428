package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Opening a FIFO blocks until the other end is opened too. The open runs in
// its own goroutine so a caller can give up on ctx; an abandoned open is
// released by briefly opening the opposite end.

type openResult struct {
	f   *os.File
	err error
}

func openFIFO(ctx context.Context, path string, flag int) (*os.File, error) {
	ch := make(chan openResult, 1)
	go func() {
		f, err := os.OpenFile(path, flag, 0)
		ch <- openResult{f, err}
	}()

	select {
	case res := <-ch:
		return res.f, res.err
	case <-ctx.Done():
		releaseFIFO(path, flag)
		go func() {
			if res := <-ch; res.f != nil {
				_ = res.f.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func releaseFIFO(path string, flag int) {
	opposite := unix.O_WRONLY
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		opposite = unix.O_RDONLY
	}
	fd, err := unix.Open(path, opposite|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err == nil {
		_ = unix.Close(fd)
	}
}

func isFIFO(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode()&fs.ModeNamedPipe != 0
}

// newPipeSource reads from a named pipe created by someone else, polling
// until the path exists.
func newPipeSource(opts Options) *streamSource {
	path := opts.PipePath
	return &streamSource{
		lifecycle: newLifecycle(KindPipe),
		opts:      opts,
		target:    path,
		dial: func(ctx context.Context) (io.ReadCloser, error) {
			if _, err := os.Stat(path); err != nil {
				return nil, err
			}
			return openFIFO(ctx, path, os.O_RDONLY)
		},
	}
}

// newPipeSink creates the named pipe when missing, writes to it, and
// removes it on Close.
func newPipeSink(opts Options) *streamSink {
	path := opts.PipePath
	return &streamSink{
		lifecycle: newLifecycle(KindPipe),
		opts:      opts,
		target:    path,
		dial: func(ctx context.Context) (io.WriteCloser, error) {
			if err := unix.Mkfifo(path, 0o644); err != nil && !errors.Is(err, unix.EEXIST) {
				return nil, fmt.Errorf("mkfifo %s: %w", path, err)
			}
			return openFIFO(ctx, path, os.O_WRONLY)
		},
		cleanup: func() error {
			if !isFIFO(path) {
				return nil
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove pipe %s: %w", path, err)
			}
			return nil
		},
	}
}
