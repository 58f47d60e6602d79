package transaction

import (
	"log/slog"

	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/policy"
	"github.com/viant/patchtx/progress"
	"github.com/viant/patchtx/service/matcher"
	"github.com/viant/patchtx/service/oracle"
)

// Option customises an Applier.
type Option func(a *Applier)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMatcher sets the hunk matcher.
func WithMatcher(m *matcher.Matcher) Option {
	return func(a *Applier) { a.matcher = m }
}

// WithPolicy sets the guardrail policy; a policy embedded in the call context wins.
func WithPolicy(p *policy.Policy) Option {
	return func(a *Applier) { a.policy = p }
}

// WithOracle sets the verification oracle.
func WithOracle(o oracle.Oracle) Option {
	return func(a *Applier) { a.oracle = o }
}

// WithWorkers bounds concurrent reads during validation.
func WithWorkers(workers int) Option {
	return func(a *Applier) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

// WithVerification sets the verification used when a request carries none.
func WithVerification(verification *model.Verification) Option {
	return func(a *Applier) { a.verification = verification }
}

// WithLogOutputLimit caps verification output written to logs.
func WithLogOutputLimit(limit int) Option {
	return func(a *Applier) { a.logOutputLimit = limit }
}

// WithProgress registers a callback receiving counters on every change.
func WithProgress(onChange func(progress.Counters)) Option {
	return func(a *Applier) { a.onProgress = onChange }
}
