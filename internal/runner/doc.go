// Package runner provides the batch execution engine for seckillprobe.
//
// A [Runner] dispatches a fixed number of purchase attempts, identified 1..N,
// over a pool of Concurrency worker goroutines. Attempts beyond the pool size
// wait for a free worker. Run returns only after every attempt has completed,
// which makes it the barrier between the load phase and reporting.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Concurrency:   50,
//		TotalRequests: 1000,
//		Attempter:     myAttempter,
//		Recorder:      collector,
//	})
//	if err != nil {
//		return err // the pool could not be built
//	}
//	result := r.Run(ctx)
//
// # Attempter Interface
//
// The [Attempter] interface defines what a runner executes:
//
//	type Attempter interface {
//		Attempt(ctx context.Context, id int) AttemptResult
//	}
//
// Every attempt produces exactly one classified [AttemptResult], which is
// handed to the [Recorder]. A panicking attempt is recovered and recorded as
// an OtherException. Attempts are never retried.
//
// # Pacing
//
// Dispatch is unpaced by default. With RatePerSecond set, ids are released
// either at uniform intervals ([ArrivalModelUniform]) or with exponential
// gaps ([ArrivalModelPoisson]).
//
// # Middleware
//
// [WithProgress] reports each attempt as it finishes; the CLI uses it for the
// verbose per-request line.
package runner
