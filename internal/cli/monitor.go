package cli

import (
	"context"
	"log"

	"github.com/SmitUplenchwar2687/Mavtape/internal/monitor"
)

// startMonitor serves the live monitor on addr until the returned stop
// function is called or ctx is cancelled.
func startMonitor(ctx context.Context, addr string, status monitor.StatusFunc) (*monitor.Hub, func()) {
	srv := monitor.New(addr, monitor.NewHub(), status, nil)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); err != nil {
			log.Printf("monitor: %v", err)
		}
	}()
	return srv.Hub(), func() {
		cancel()
		<-done
	}
}
