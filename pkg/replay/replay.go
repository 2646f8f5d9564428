// Package replay exposes the multi-endpoint replay engine for embedding.
package replay

import (
	"context"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	internalreplay "github.com/SmitUplenchwar2687/Mavtape/internal/replay"
)

// Job binds one sink to a repeat policy.
type Job = internalreplay.Job

// Policy is a job's repeat policy.
type Policy = internalreplay.Policy

// Options are shared by every worker of a run.
type Options = internalreplay.Options

// Result is the outcome of one job.
type Result = internalreplay.Result

// Event describes one completed send.
type Event = internalreplay.Event

// Filter selects part of a capture for replay.
type Filter = internalreplay.Filter

// Sink is a replay endpoint.
type Sink = endpoint.Sink

// SinkOptions configures a sink.
type SinkOptions = endpoint.Options

// ErrEmptyLog is returned by a job whose policy needs records from an
// empty log.
var ErrEmptyLog = internalreplay.ErrEmptyLog

// PolicyFromN maps 0 to all-once, n > 0 to finite(n) and -1 to infinite.
func PolicyFromN(n int) (Policy, error) {
	return internalreplay.PolicyFromN(n)
}

// NewSink builds an unconnected sink of the named kind.
func NewSink(kind string, opts SinkOptions) (Sink, error) {
	k, err := endpoint.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	return endpoint.NewSink(k, opts)
}

// Run replays records to every job concurrently.
func Run(ctx context.Context, records []capturelog.Record, jobs []Job, opts Options) []Result {
	return internalreplay.Run(ctx, records, jobs, opts)
}

// FirstError returns the first non-cancellation job error.
func FirstError(results []Result) error {
	return internalreplay.FirstError(results)
}
