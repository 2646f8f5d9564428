// Package progress tracks how many messages all replay workers have sent.
// One Reporter is created per invocation and handed to every worker.
package progress

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Unbounded is the total of a run that has no natural end.
const Unbounded int64 = -1

// TotalFor sums per-worker send counts. Any negative count makes the whole
// run Unbounded.
func TotalFor(sends ...int64) int64 {
	var total int64
	for _, n := range sends {
		if n < 0 {
			return Unbounded
		}
		total += n
	}
	return total
}

// Options configures the textual bar.
type Options struct {
	// Writer receives the bar; defaults to stderr.
	Writer      io.Writer
	Description string
	// Hidden disables rendering while still counting.
	Hidden bool
}

// Reporter is a shared completion counter. The count is authoritative; the
// bar is a best-effort rendering of it.
type Reporter struct {
	count atomic.Int64
	total int64
	start time.Time

	bar        *progressbar.ProgressBar
	finishOnce sync.Once
}

// New creates a Reporter expecting total increments, or Unbounded.
func New(total int64, opts Options) *Reporter {
	if total < 0 {
		total = Unbounded
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.Hidden),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = io.WriteString(w, "\n")
		}),
	)
	return &Reporter{total: total, start: time.Now(), bar: bar}
}

// Add records n completed sends and returns the new count.
func (r *Reporter) Add(n int64) int64 {
	c := r.count.Add(n)
	_ = r.bar.Add64(n)
	return c
}

func (r *Reporter) Count() int64 {
	return r.count.Load()
}

// Total returns the expected count, or Unbounded.
func (r *Reporter) Total() int64 {
	return r.total
}

// Snapshot is a point-in-time view of a Reporter.
type Snapshot struct {
	Count   int64         `json:"count"`
	Total   int64         `json:"total"`
	Percent float64       `json:"percent,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

func (r *Reporter) Snapshot() Snapshot {
	s := Snapshot{
		Count:   r.count.Load(),
		Total:   r.total,
		Elapsed: time.Since(r.start),
	}
	if r.total > 0 {
		s.Percent = 100 * float64(s.Count) / float64(r.total)
	}
	return s
}

// Finish completes the bar. Safe to call more than once.
func (r *Reporter) Finish() {
	r.finishOnce.Do(func() {
		_ = r.bar.Finish()
	})
}
