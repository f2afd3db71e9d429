package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/seckillprobe/internal/buyers"
	"github.com/torosent/seckillprobe/internal/config"
	"github.com/torosent/seckillprobe/internal/httpclient"
	"github.com/torosent/seckillprobe/internal/outcome"
	"github.com/torosent/seckillprobe/internal/runner"
	"github.com/torosent/seckillprobe/internal/tracing"
)

// purchaseAttempter sends one purchase request per attempt and classifies
// whatever comes back.
type purchaseAttempter struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	buyers    *buyers.List
	markers   outcome.Markers
	tracer    trace.Tracer
	propagate bool
}

func newPurchaseAttempter(cfg *config.Config, client *http.Client, tp *tracing.Provider) (*purchaseAttempter, error) {
	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}
	var list *buyers.List
	if cfg.BuyersFile != "" {
		if list, err = buyers.Load(cfg.BuyersFile); err != nil {
			return nil, err
		}
	}
	return &purchaseAttempter{
		client:    client,
		builder:   builder,
		buyers:    list,
		markers:   markersFromConfig(cfg.Markers),
		tracer:    tp.Tracer(),
		propagate: tp.ShouldPropagate(),
	}, nil
}

func (a *purchaseAttempter) Attempt(ctx context.Context, id int) runner.AttemptResult {
	start := time.Now()
	ctx, span := tracing.StartAttemptSpan(ctx, a.tracer, a.builder.Method(), a.builder.Target(), id)

	req, err := a.builder.BuildFor(ctx, a.buyers.ForAttempt(id))
	if err != nil {
		o := outcome.ClassifyError(err)
		tracing.EndAttemptSpan(span, o, err)
		return runner.AttemptResult{Outcome: o, Latency: time.Since(start), Err: err}
	}
	if a.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := httpclient.Exchange(a.client, req)
	latency := time.Since(start)
	var o outcome.Outcome
	if err != nil {
		o = outcome.ClassifyError(err)
	} else {
		o = outcome.Classify(resp.StatusCode, resp.Body, a.markers)
	}
	tracing.EndAttemptSpan(span, o, err)
	return runner.AttemptResult{Outcome: o, Latency: latency, Err: err}
}

func markersFromConfig(m config.MarkerConfig) outcome.Markers {
	return outcome.Markers{
		Success: m.Success,
		SoldOut: m.SoldOut,
		Invalid: m.Invalid,
		Field:   m.BodyField,
	}
}

// stderrProgressLogger prints one line per finished attempt.
type stderrProgressLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *stderrProgressLogger) LogAttempt(id int, res runner.AttemptResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if res.Err != nil {
		fmt.Fprintf(l.w, "Req %d: %s (%v)\n", id, res.Outcome.Label(), res.Err)
		return
	}
	fmt.Fprintf(l.w, "Req %d: %s\n", id, res.Outcome.Label())
}
