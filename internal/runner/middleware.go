package runner

import "context"

// ProgressLogger receives one line per finished attempt.
type ProgressLogger interface {
	LogAttempt(id int, res AttemptResult)
}

type progressAttempter struct {
	inner  Attempter
	logger ProgressLogger
}

// WithProgress wraps an Attempter to report every attempt as it finishes.
func WithProgress(a Attempter, logger ProgressLogger) Attempter {
	if logger == nil {
		return a
	}
	return &progressAttempter{inner: a, logger: logger}
}

func (p *progressAttempter) Attempt(ctx context.Context, id int) AttemptResult {
	res := p.inner.Attempt(ctx, id)
	p.logger.LogAttempt(id, res)
	return res
}
