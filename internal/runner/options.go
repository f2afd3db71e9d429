package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/seckillprobe/internal/outcome"
)

// AttemptResult is what a single purchase attempt produced.
type AttemptResult struct {
	Outcome outcome.Outcome
	Latency time.Duration
	Err     error // cause, set for the exception categories
}

// Attempter issues one purchase attempt and classifies it.
// Implementations must not retry.
type Attempter interface {
	Attempt(ctx context.Context, id int) AttemptResult
}

// AttempterFunc adapts a function to the Attempter interface.
type AttempterFunc func(ctx context.Context, id int) AttemptResult

func (f AttempterFunc) Attempt(ctx context.Context, id int) AttemptResult { return f(ctx, id) }

// Recorder receives every classified attempt exactly once.
type Recorder interface {
	RecordAttempt(latency time.Duration, o outcome.Outcome, err error)
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // number of worker goroutines
	TotalRequests  int                         // attempts to dispatch, ids 1..TotalRequests
	RatePerSecond  int                         // dispatch pacing (0 means unlimited)
	ArrivalModel   ArrivalModel                // pacing model when RatePerSecond > 0
	RandomSeed     int64                       // seed for Poisson sampling
	PoissonSampler func() float64              // optional injection for tests
	Attempter      Attempter                   // attempt executor (required)
	Recorder       Recorder                    // optional sink for outcomes
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
