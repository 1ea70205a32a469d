package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

// Schedule is one resolution retry plan.
type Schedule struct {
	Attempts int
	Interval time.Duration
	Strategy string
}

// Retrier resolves references against live sessions with a
// confidence-adaptive schedule: high-confidence references fail fast
// (a missing one is likely a real regression), low-confidence ones get
// patience (hand-typed names take time to stabilize).
type Retrier struct {
	cfg      config.RetryConfig
	resolver *Resolver

	// sleep is replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// NewRetrier wires a resolver to a retry configuration.
func NewRetrier(cfg config.RetryConfig, resolver *Resolver) *Retrier {
	return &Retrier{cfg: cfg, resolver: resolver, sleep: sleepCtx}
}

// ScheduleFor computes the retry plan for a reference. An explicit
// timeout (wait_until_visible) overrides the confidence tier: the
// interval stays, and attempts stretch to fill the timeout.
func (r *Retrier) ScheduleFor(conf flow.Confidence, explicitTimeout time.Duration) Schedule {
	var tier config.RetryTier
	var strategy string
	switch conf {
	case flow.ConfidenceHigh:
		tier, strategy = r.cfg.High, "fast-fail"
	case flow.ConfidenceLow:
		tier, strategy = r.cfg.Low, "patient"
	default:
		tier, strategy = r.cfg.Medium, "balanced"
	}

	s := Schedule{Attempts: tier.Attempts, Interval: tier.Interval, Strategy: strategy}
	if explicitTimeout > 0 {
		attempts := int(explicitTimeout / tier.Interval)
		if attempts < 1 {
			attempts = 1
		}
		s.Attempts = attempts
		s.Strategy = fmt.Sprintf("explicit-wait (%s)", explicitTimeout)
	}
	return s
}

// Resolve resolves ref against the session, retrying per the schedule.
// A fresh snapshot is taken before every attempt, so late-rendering
// elements are picked up as soon as they appear. explicitTimeout of
// zero means "use the confidence tier".
func (r *Retrier) Resolve(ctx context.Context, sess browser.Session, ref *flow.ElementRef, explicitTimeout time.Duration) (*Result, error) {
	sched := r.ScheduleFor(ref.EffectiveConfidence(), explicitTimeout)

	// Let the page settle before the first look. A failed settle is
	// not fatal; resolution retries absorb the jitter.
	settleCtx, cancel := context.WithTimeout(ctx, r.cfg.StabilityWait)
	_ = sess.WaitForLoad(settleCtx)
	cancel()

	var lastErr error
	for attempt := 0; attempt < sched.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, failure.From(err)
		}

		snap, err := sess.Snapshot(ctx)
		if err != nil {
			lastErr = err
		} else {
			res, rerr := r.resolver.Resolve(snap, ref)
			if rerr == nil {
				res.Attempts = attempt + 1
				return res, nil
			}
			lastErr = rerr

			// Ambiguity and low confidence are diagnoses, not
			// timing: more attempts will not make two matching
			// buttons become one.
			if failure.Is(rerr, failure.CategoryResolutionAmbiguity) ||
				failure.Is(rerr, failure.CategoryLowConfidence) {
				return nil, rerr
			}
		}

		if attempt < sched.Attempts-1 {
			if err := r.sleep(ctx, sched.Interval); err != nil {
				return nil, failure.From(err)
			}
		}
	}

	guidance := guidanceFor(ref.EffectiveConfidence())
	f := failure.ElementNotFound(ref.Display(), sched.Attempts, guidance).
		WithEvidence("strategy", sched.Strategy)
	if lastErr != nil {
		f = f.WithUnderlying(lastErr)
	}
	return nil, f
}

func guidanceFor(conf flow.Confidence) string {
	switch conf {
	case flow.ConfidenceHigh:
		return "This element should be easy to find. The page may have changed; try reselecting it."
	case flow.ConfidenceLow:
		return "This element relies on a manually declared semantic label. Try adding a native aria-label to the application for better stability."
	default:
		return "Element not found. The page may have changed, or it may not be visible yet."
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
