// Package backtest drives simulated trading runs: one orchestrated step
// loop per run, and a scheduler for executing many runs concurrently.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"backsim/internal/broker"
	"backsim/internal/domain"
	"backsim/internal/feed"
	"backsim/internal/metrics"
	"backsim/internal/policy"
	"backsim/internal/strategy"
)

// State is the lifecycle state of a run.
type State int32

// Run states.
const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

// ErrAlreadyStarted is returned when Execute is called on a run that has
// left the IDLE state. Runs are single-use; construct a fresh one instead
// of reusing mutated state.
var ErrAlreadyStarted = errors.New("run already started")

// Options configure one run. Every run owns its strategy, policy and
// broker exclusively; only the feed may be shared, read-only, with other
// runs.
type Options struct {
	RunID    string
	Feed     feed.Feed
	Strategy strategy.Strategy
	Policy   policy.Policy

	// Broker configures the run's execution engine. Broker.RunID is
	// overridden with the run's id.
	Broker broker.Options

	// Timeframe bounds the events the run consumes. The zero value is
	// the infinite timeframe.
	Timeframe domain.Timeframe

	// ChannelCapacity sizes the event channel. Zero means rendezvous.
	ChannelCapacity int

	// MetricsLogger receives the per-step account metric batch;
	// NopLogger when nil.
	MetricsLogger metrics.Logger

	// Sink receives policy counters; NopSink when nil.
	Sink policy.MetricsSink

	// Logger receives run phase lines; silent when nil.
	Logger *log.Logger
}

// Run executes one backtest: it pulls events from the feed and drives the
// strategy, policy and broker through the strictly sequential step loop.
type Run struct {
	runID      string
	feed       feed.Feed
	strategy   strategy.Strategy
	policy     policy.Policy
	broker     *broker.SimBroker
	timeframe  domain.Timeframe
	channelCap int
	metric     metrics.AccountMetric
	mlogger    metrics.Logger
	sink       policy.MetricsSink
	logger     *log.Logger

	state atomic.Int32
	err   error

	rejections []broker.Rejection
	steps      int
}

// NewRun creates an idle run. The broker is constructed here so no run
// ever observes another run's mutated account.
func NewRun(opts Options) (*Run, error) {
	if opts.Feed == nil {
		return nil, errors.New("run needs a feed")
	}
	if opts.Strategy == nil {
		return nil, errors.New("run needs a strategy")
	}
	if opts.Policy == nil {
		return nil, errors.New("run needs a policy")
	}
	if opts.RunID == "" {
		return nil, errors.New("run needs an id")
	}

	opts.Broker.RunID = opts.RunID
	mlogger := opts.MetricsLogger
	if mlogger == nil {
		mlogger = metrics.NopLogger{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = policy.NopSink{}
	}

	return &Run{
		runID:      opts.RunID,
		feed:       opts.Feed,
		strategy:   opts.Strategy,
		policy:     opts.Policy,
		broker:     broker.New(opts.Broker),
		timeframe:  opts.Timeframe,
		channelCap: opts.ChannelCapacity,
		mlogger:    mlogger,
		sink:       sink,
		logger:     opts.Logger,
	}, nil
}

// RunID returns the run's identifier.
func (r *Run) RunID() string { return r.runID }

// State returns the current lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

// Err returns the failure cause once the run is FAILED, nil otherwise.
func (r *Run) Err() error {
	if r.State() != StateFailed {
		return nil
	}
	return r.err
}

// Broker returns the run's execution engine.
func (r *Run) Broker() *broker.SimBroker { return r.broker }

// Trades returns the run's trade ledger.
func (r *Run) Trades() []domain.Trade { return r.broker.Trades() }

// Rejections returns every order rejection the run produced.
func (r *Run) Rejections() []broker.Rejection { return r.rejections }

// Steps returns the number of events the run has processed.
func (r *Run) Steps() int { return r.steps }

// Execute runs the step loop to completion. It transitions
// IDLE → RUNNING → DONE on a clean end of stream and IDLE → RUNNING →
// FAILED on a step or feed error, returning the failure cause. A run is
// single-use.
func (r *Run) Execute(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	r.strategy.Reset()
	r.policy.Reset()

	ch := feed.NewEventChannel(r.channelCap)

	// Closing the channel is the cancellation primitive: it unblocks the
	// feed's send and this loop's receive.
	cancelDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ch.Close()
		case <-cancelDone:
		}
	}()
	defer close(cancelDone)

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- r.feed.Play(ctx, ch)
	}()

	r.logf("run %s: started", r.runID)

	if err := r.loop(ch); err != nil {
		ch.Close()
		<-feedErr
		return r.fail(err)
	}

	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return r.fail(fmt.Errorf("feed: %w", err))
	}

	r.state.Store(int32(StateDone))
	r.logf("run %s: done after %d steps, %d trades", r.runID, r.steps, len(r.broker.Trades()))
	return nil
}

func (r *Run) loop(ch *feed.EventChannel) error {
	for {
		event, err := ch.Receive()
		if err != nil {
			// End of stream, the expected way a run reaches DONE.
			if errors.Is(err, feed.ErrChannelClosed) {
				return nil
			}
			return err
		}

		if !r.timeframe.Infinite() && !r.timeframe.Contains(event.Time) {
			// Past the end of the frame nothing more can match; closing
			// the channel stops the feed.
			if !r.timeframe.End.IsZero() && event.Time.After(r.timeframe.End) {
				ch.Close()
				return nil
			}
			continue
		}

		if err := r.step(event); err != nil {
			return err
		}
	}
}

// step performs one strictly sequential pipeline pass. No step begins
// before the prior step's broker mutation completed.
func (r *Run) step(event *domain.Event) error {
	r.steps++

	signals, err := r.strategy.Generate(event)
	if err != nil {
		// Indicator warm-up: skip signal generation this step, keep the
		// broker and metrics moving.
		if !errors.Is(err, strategy.ErrInsufficientData) {
			return fmt.Errorf("strategy %s: %w", r.strategy.ID(), err)
		}
		signals = nil
	}

	if len(signals) > 0 {
		orders := r.policy.Act(signals, r.broker.Account(), event, r.sink)
		if rejected := r.broker.Place(orders); len(rejected) > 0 {
			r.rejections = append(r.rejections, rejected...)
		}
	}

	r.broker.Sync(event)

	results := r.metric.Calc(r.broker.Account())
	r.mlogger.Log(results, event.Time, r.runID)
	return nil
}

func (r *Run) fail(err error) error {
	r.err = err
	r.state.Store(int32(StateFailed))
	r.logf("run %s: failed: %v", r.runID, err)
	return err
}

func (r *Run) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
