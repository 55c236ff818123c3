package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/retry"
	"github.com/GPTx-global/rofl-oracle/oracle/telemetry"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

// Store is the part of the observation queue the scheduler drains.
type Store interface {
	Len() int
	DequeueHead() (types.Value, bool)
	RequeueFront(value types.Value) int
	RecordSuccess(value types.Value)
	HistoryLen() int
}

// Submitter sends one observation to the contract.
type Submitter interface {
	SubmitObservation(ctx context.Context, value types.Value) ([]byte, error)
}

// Outcome is the result of a single tick.
type Outcome int

const (
	// OutcomeIdle means the queue was empty.
	OutcomeIdle Outcome = iota
	// OutcomeSkipped means another tick was still in flight.
	OutcomeSkipped
	// OutcomeDeferred means the scheduler is backing off after a failure.
	OutcomeDeferred
	OutcomeSubmitted
	OutcomeRequeued
	// OutcomeDropped means the value can never be submitted.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeRequeued:
		return "requeued"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Scheduler drains the pending queue one observation per tick. Failed
// submissions go back to the head of the queue and later ticks are deferred
// by a capped exponential backoff.
type Scheduler struct {
	store     Store
	submitter Submitter
	interval  time.Duration
	backoff   *retry.Backoff

	busy *atomic.Bool
	// ticks left to skip before the next attempt; only touched while busy
	deferTicks int

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

func New(store Store, submitter Submitter, interval time.Duration, policy retry.Policy) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}

	backoff, err := retry.NewBackoff(policy)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		store:     store,
		submitter: submitter,
		interval:  interval,
		backoff:   backoff,
		busy:      atomic.NewBool(false),
		quit:      make(chan struct{}),
	}, nil
}

// Start runs the tick loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	log.Infof("scheduler started, interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.quit:
			log.Info("scheduler stopped")
			return
		case <-ctx.Done():
			log.Info("scheduler stopped: context done")
			return
		}
	}
}

// Tick makes at most one submission attempt. Calls that overlap a running
// tick return OutcomeSkipped without touching the queue. Submission errors
// never escape; they are reflected in the returned outcome.
func (s *Scheduler) Tick(ctx context.Context) Outcome {
	if !s.busy.CompareAndSwap(false, true) {
		telemetry.IncrCounter(1, telemetry.MetricScheduler, telemetry.MetricSkipped)
		return OutcomeSkipped
	}
	defer s.busy.Store(false)

	pending := s.store.Len()
	if pending == 0 {
		// the failed value left the queue another way, so its streak is over
		s.clearBackoff()
		return OutcomeIdle
	}

	if s.deferTicks > 0 {
		s.deferTicks--
		log.Debugf("backing off, %d pending, %d ticks until next attempt", pending, s.deferTicks+1)
		telemetry.IncrCounter(1, telemetry.MetricScheduler, telemetry.MetricDeferred)
		return OutcomeDeferred
	}

	log.Infof("Processing %d pending observations", pending)

	value, ok := s.store.DequeueHead()
	if !ok {
		return OutcomeIdle
	}

	start := time.Now()
	_, err := s.submitter.SubmitObservation(ctx, value)
	telemetry.MeasureSince(start, telemetry.MetricSigner, telemetry.MetricLatency)

	if err == nil {
		s.store.RecordSuccess(value)
		s.clearBackoff()

		log.Infof("Submitted observation %s", value)
		telemetry.IncrCounter(1, telemetry.MetricScheduler, telemetry.MetricSubmitted)
		telemetry.SetGauge(float32(s.store.HistoryLen()), telemetry.MetricQueue, telemetry.MetricHistory)
		return OutcomeSubmitted
	}

	if !retry.IsRetryable(err) && !errors.Is(err, context.Canceled) {
		log.Errorf("Dropping observation %s: %v", value, err)
		telemetry.IncrCounter(1, telemetry.MetricScheduler, telemetry.MetricDropped)
		return OutcomeDropped
	}

	s.store.RequeueFront(value)
	delay := s.backoff.Failure()
	s.deferTicks = s.ticksFor(delay)

	log.Errorf("Failed to submit observation %s, requeued (attempt %d, retry in %s): %v",
		value, s.backoff.Failures(), delay, err)
	telemetry.IncrCounter(1, telemetry.MetricScheduler, telemetry.MetricRequeued)
	telemetry.SetGauge(float32(s.backoff.Failures()), telemetry.MetricScheduler, telemetry.MetricFailures)
	return OutcomeRequeued
}

func (s *Scheduler) clearBackoff() {
	s.backoff.Reset()
	s.deferTicks = 0
	telemetry.SetGauge(0, telemetry.MetricScheduler, telemetry.MetricFailures)
}

// ticksFor converts a backoff delay into whole ticks to skip. A delay of one
// interval or less retries on the very next tick.
func (s *Scheduler) ticksFor(delay time.Duration) int {
	ticks := int((delay + s.interval - 1) / s.interval)
	if ticks < 1 {
		return 0
	}
	return ticks - 1
}
