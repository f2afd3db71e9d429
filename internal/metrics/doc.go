// Package metrics aggregates the outcomes of purchase attempts.
//
// Two structures cooperate:
//
//   - [Tally] holds one atomic counter per outcome category (plus a per status
//     code split for HTTP errors). Workers increment it without taking a lock,
//     so no update is lost regardless of concurrency.
//   - [Collector] wraps a Tally together with an HDR latency histogram and a
//     breakdown of transport failure causes.
//
// Typical use:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	// from every worker
//	collector.RecordAttempt(latency, outcome.Outcome{Category: outcome.Success}, nil)
//
//	// after the batch barrier
//	stats := collector.Stats(elapsed)
//
// The tally may also be read while the run is in flight; the progress line and
// the dashboard do this.
package metrics
