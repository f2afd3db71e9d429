package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/seckillprobe/internal/outcome"
)

// ErrNoAttempter is returned by New when Options.Attempter is nil.
var ErrNoAttempter = errors.New("runner: attempter is required")

// Result captures execution summary.
type Result struct {
	Total     int64 // attempts dispatched
	Completed int64 // attempts that returned (all of them, once Run returns)
	Duration  time.Duration
}

// Runner dispatches a fixed batch of attempts over a bounded worker pool.
type Runner struct {
	opt     Options
	arrival arrivalController
}

// New validates the options and builds the pool. A returned error means the
// batch cannot be scheduled at all.
func New(opt Options) (*Runner, error) {
	if opt.Attempter == nil {
		return nil, ErrNoAttempter
	}
	if opt.TotalRequests < 1 {
		return nil, fmt.Errorf("runner: total requests must be >= 1, got %d", opt.TotalRequests)
	}
	opt.normalize()
	return &Runner{opt: opt, arrival: newArrivalController(opt)}, nil
}

// Run sends attempts 1..TotalRequests and blocks until every one of them has
// completed. The batch cannot be aborted; ctx only carries values (such as a
// parent span) into the attempts.
func (r *Runner) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	var dispatched, completed atomic.Int64
	ids := make(chan int, r.opt.Concurrency)

	start := time.Now()

	// Scheduler: serializes pacing so workers only ever see released ids.
	go func() {
		defer close(ids)
		for id := 1; id <= r.opt.TotalRequests; id++ {
			if r.arrival != nil {
				_ = r.arrival.Wait(ctx)
			}
			dispatched.Add(1)
			ids <- id
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for id := range ids {
				res := r.execute(ctx, id)
				if r.opt.Recorder != nil {
					r.opt.Recorder.RecordAttempt(res.Latency, res.Outcome, res.Err)
				}
				completed.Add(1)
			}
		}()
	}
	wg.Wait()

	return Result{
		Total:     dispatched.Load(),
		Completed: completed.Load(),
		Duration:  time.Since(start),
	}
}

// execute runs one attempt, converting a panic into an OtherException so the
// worker survives and the attempt is still counted once.
func (r *Runner) execute(ctx context.Context, id int) (res AttemptResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = AttemptResult{
				Outcome: outcome.Outcome{Category: outcome.OtherException},
				Latency: time.Since(start),
				Err:     &PanicError{ID: id, Value: p, Stack: debug.Stack()},
			}
		}
	}()
	res = r.opt.Attempter.Attempt(ctx, id)
	if !res.Outcome.Category.Valid() {
		res.Outcome = outcome.Outcome{Category: outcome.OtherException}
	}
	return res
}

// PanicError wraps a value recovered from a panicking attempt.
type PanicError struct {
	ID    int
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("attempt %d panicked: %v", e.ID, e.Value)
}
