package retry

import (
	"context"
	"errors"
	"time"

	errorsmod "cosmossdk.io/errors"
	goretry "github.com/sethvargo/go-retry"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

// Policy describes a capped exponential backoff.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy matches the scheduler defaults: one tick, doubling up to five minutes.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: 30 * time.Second,
		MaxDelay:  5 * time.Minute,
	}
}

// QueryPolicy is used for one-shot reads from the command line.
func QueryPolicy() Policy {
	return Policy{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

func (p Policy) Validate() error {
	if p.BaseDelay <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "base delay must be positive, got %s", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// backoff builds the go-retry schedule. The policy must be valid;
// NewExponential panics on a non-positive base.
func (p Policy) backoff() goretry.Backoff {
	return goretry.WithCappedDuration(p.MaxDelay, goretry.NewExponential(p.BaseDelay))
}

// Backoff tracks consecutive failures of a single caller. It is not safe for
// concurrent use.
type Backoff struct {
	policy   Policy
	next     goretry.Backoff
	failures int
}

func NewBackoff(policy Policy) (*Backoff, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	b := &Backoff{policy: policy}
	b.reset()
	return b, nil
}

// Failure records one more consecutive failure and returns how long the
// caller should wait before the next attempt.
func (b *Backoff) Failure() time.Duration {
	b.failures++
	delay, stop := b.next.Next()
	if stop {
		return b.policy.MaxDelay
	}
	return delay
}

// Reset clears the failure streak after a success.
func (b *Backoff) Reset() {
	if b.failures == 0 {
		return
	}
	b.reset()
}

func (b *Backoff) Failures() int {
	return b.failures
}

func (b *Backoff) reset() {
	b.next = b.policy.backoff()
	b.failures = 0
}

// IsRetryable reports whether retrying the same request can succeed.
// Invalid values and encoding failures are permanent. Everything else,
// including unknown errors, is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, types.ErrEncoding) || errors.Is(err, types.ErrInvalidValue) || errors.Is(err, types.ErrInvalidConfig) {
		return false
	}
	return true
}

// Do runs fn until it succeeds, returns a permanent error, or maxRetries
// retries have been spent.
func Do(ctx context.Context, policy Policy, maxRetries uint64, fn func(ctx context.Context) error) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	attempt := 0
	return goretry.Do(ctx, goretry.WithMaxRetries(maxRetries, policy.backoff()), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		log.Debugf("attempt %d failed, retrying: %v", attempt, err)
		return goretry.RetryableError(err)
	})
}
