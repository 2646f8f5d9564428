// Package replay sends a loaded capture to one or more sink endpoints,
// reproducing the recorded inter-message timing.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
	"github.com/SmitUplenchwar2687/Mavtape/internal/progress"
)

// ErrEmptyLog is returned by a job whose policy needs records from a log
// that has none.
var ErrEmptyLog = errors.New("replay: capture log has no records")

// Job binds one sink to a repeat policy. The sink is owned by the job: it
// is connected, used and closed by a single worker.
type Job struct {
	Name   string
	Sink   endpoint.Sink
	Policy Policy
}

// Event describes one completed send. Reported to Options.OnSend.
type Event struct {
	Job         string        `json:"job"`
	Kind        endpoint.Kind `json:"kind"`
	Seq         int64         `json:"seq"`
	Index       int           `json:"index"`
	MessageID   uint32        `json:"message_id"`
	TimestampMs int64         `json:"timestamp_ms"`
	Size        int           `json:"size"`
	SendTime    time.Duration `json:"send_ns"`
	Time        time.Time     `json:"time"`
}

// Options are shared by every worker of a run.
type Options struct {
	Clock clock.Clock
	// Speed scales the recorded gaps: 1 is the recorded pace, 2 twice as
	// fast, 0 sends back-to-back.
	Speed float64
	// Progress is advanced once per send by every worker.
	Progress *progress.Reporter
	// OnSend is called from worker goroutines and must be safe for
	// concurrent use.
	OnSend func(Event)
}

// Result is the outcome of one job.
type Result struct {
	Job     string
	Kind    endpoint.Kind
	Sent    int64
	Elapsed time.Duration
	Err     error
}

// Run executes every job concurrently over the same records and waits for
// all of them. A failing job stops only itself; cancelling ctx stops all.
// Results are returned in job order.
func Run(ctx context.Context, records []capturelog.Record, jobs []Job, opts Options) []Result {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Speed < 0 {
		opts.Speed = 0
	}

	type indexed struct {
		i   int
		res Result
	}
	ch := make(chan indexed, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		go func() {
			w := &worker{job: job, records: records, opts: opts}
			ch <- indexed{i, w.run(ctx)}
		}()
	}

	results := make([]Result, len(jobs))
	for range jobs {
		r := <-ch
		results[r.i] = r.res
	}
	return results
}

// FirstError returns the first failed result's error, ignoring
// cancellation.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
			return fmt.Errorf("%s: %w", r.Job, r.Err)
		}
	}
	return nil
}

// worker owns one job's pacing state.
type worker struct {
	job     Job
	records []capturelog.Record
	opts    Options

	lastTimestampMs int64
	lastSend        time.Duration
}

func (w *worker) run(ctx context.Context) (res Result) {
	clk := w.opts.Clock
	sink := w.job.Sink
	res = Result{Job: w.job.Name, Kind: sink.Kind()}
	began := clk.Now()
	defer func() {
		if err := sink.Close(); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("close: %w", err)
		}
		res.Elapsed = clk.Since(began)
	}()

	total := w.job.Policy.Sends(len(w.records))
	if total != 0 && len(w.records) == 0 {
		res.Err = ErrEmptyLog
		return res
	}

	if err := sink.Connect(ctx); err != nil {
		res.Err = fmt.Errorf("connect: %w", err)
		return res
	}

	for seq := int64(0); total < 0 || seq < total; seq++ {
		idx := int(seq % int64(len(w.records)))
		if err := w.send(ctx, seq, idx); err != nil {
			res.Err = err
			return res
		}
		res.Sent++
	}
	return res
}

// send waits out the recorded gap to record idx, less the time the previous
// send took, then sends it. The wait is never negative: a log that wraps
// back to its first record sends it immediately.
func (w *worker) send(ctx context.Context, seq int64, idx int) error {
	rec := w.records[idx]
	clk := w.opts.Clock

	if w.opts.Speed > 0 {
		gap := time.Duration(rec.TimestampMs-w.lastTimestampMs) * time.Millisecond
		wait := time.Duration(float64(gap)/w.opts.Speed) - w.lastSend
		if err := clock.Sleep(ctx, clk, wait); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	start := clk.Now()
	if err := w.job.Sink.Send(ctx, rec.Payload); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send record %d: %w", idx, err)
	}
	w.lastSend = clk.Since(start)
	w.lastTimestampMs = rec.TimestampMs

	if w.opts.Progress != nil {
		w.opts.Progress.Add(1)
	}
	if w.opts.OnSend != nil {
		id, _ := mavlink.MessageID(rec.Payload)
		w.opts.OnSend(Event{
			Job:         w.job.Name,
			Kind:        w.job.Sink.Kind(),
			Seq:         seq,
			Index:       idx,
			MessageID:   id,
			TimestampMs: rec.TimestampMs,
			Size:        len(rec.Payload),
			SendTime:    w.lastSend,
			Time:        clk.Now(),
		})
	}
	return nil
}

// Load reads a capture log for replay.
func Load(path string) (*capturelog.Log, error) {
	return capturelog.Load(path)
}
