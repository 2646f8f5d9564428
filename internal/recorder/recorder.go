// Package recorder drives a capture: it receives messages from one source
// endpoint, stamps them relative to the first message, and appends each one
// to the capture log before receiving the next.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
)

const heartbeatID = 0

// Recorder captures messages from Source. A Recorder runs once.
type Recorder struct {
	Source endpoint.Source
	// Log receives every record; nil captures print-only.
	Log *capturelog.Writer
	// Trace gets one "{count}: {summary}" line per message when set.
	Trace     *log.Logger
	Describer endpoint.Describer
	Clock     clock.Clock
	// MaxMessages stops the capture after that many messages; 0 is no limit.
	MaxMessages int
	// StopOnEOF treats an empty receive as the end of the capture instead of
	// waiting for more.
	StopOnEOF bool
	// WaitHeartbeat drops everything received before the first HEARTBEAT,
	// which then becomes the first record and the timestamp origin.
	WaitHeartbeat bool
	OnMessage     func(Event)

	count atomic.Int64
}

// Count returns the number of messages captured so far.
func (r *Recorder) Count() int64 {
	return r.count.Load()
}

// Run captures until ctx is cancelled, MaxMessages is reached, the stream
// ends in StopOnEOF mode, or an unrecoverable error occurs. Cancellation is
// a normal stop and returns a nil error. The source is closed on return.
func (r *Recorder) Run(ctx context.Context) (Summary, error) {
	if r.Source == nil {
		return Summary{}, errors.New("recorder: no source")
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	defer func() {
		if err := r.Source.Close(); err != nil {
			log.Printf("capture: closing %s source: %v", r.Source.Kind(), err)
		}
	}()

	began := clk.Now()
	var sum Summary
	finish := func(reason string, err error) (Summary, error) {
		sum.StoppedBy = reason
		sum.Elapsed = clk.Since(began)
		return sum, err
	}

	if err := r.Source.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return finish("cancel", nil)
		}
		return finish("error", fmt.Errorf("capture connect: %w", err))
	}

	var (
		start   time.Time
		started bool
	)
	for {
		payload, err := r.Source.Receive(ctx)
		if ctx.Err() != nil {
			return finish("cancel", nil)
		}
		if errors.Is(err, io.EOF) {
			if r.StopOnEOF {
				return finish("eof", nil)
			}
			continue
		}
		if err != nil {
			return finish("error", fmt.Errorf("capture receive: %w", err))
		}

		if r.WaitHeartbeat && !started {
			if id, ok := mavlink.MessageID(payload); !ok || id != heartbeatID {
				sum.Skipped++
				continue
			}
		}

		// Timestamps are relative to the first message, not to Run.
		if !started {
			start, started = clk.Now(), true
		}
		ts := clk.Since(start).Milliseconds()
		if ts < sum.LastTimestampMs {
			ts = sum.LastTimestampMs
		}

		if r.Log != nil {
			if err := r.Log.Append(capturelog.Record{TimestampMs: ts, Payload: payload}); err != nil {
				return finish("error", fmt.Errorf("capture append: %w", err))
			}
		}
		sum.Count = int(r.count.Add(1))
		sum.LastTimestampMs = ts

		var summary string
		if r.Trace != nil || r.OnMessage != nil {
			summary = r.describe(payload)
		}
		if r.Trace != nil {
			r.Trace.Printf("%d: %s", sum.Count, summary)
		}
		if r.OnMessage != nil {
			r.OnMessage(Event{
				Count:       sum.Count,
				TimestampMs: ts,
				Size:        len(payload),
				Summary:     summary,
				Payload:     payload,
				Time:        clk.Now(),
			})
		}

		if r.MaxMessages > 0 && sum.Count >= r.MaxMessages {
			return finish("max", nil)
		}
	}
}

func (r *Recorder) describe(payload []byte) string {
	if r.Describer == nil {
		return fmt.Sprintf("%d bytes", len(payload))
	}
	return r.Describer.Describe(payload)
}
