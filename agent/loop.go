package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultLookback = 24 * time.Hour
)

// LoopOptions configures a Loop. Pipeline.Notify is replaced by the loop's own publisher.
type LoopOptions struct {
	Interval time.Duration
	Lookback time.Duration
	Pipeline Options

	// Events receives progress events. Sends never block; events are dropped when it is full.
	Events chan<- Event

	// Sleep waits between cycles; it returns early with an error when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Loop owns the mail session and the State carried from one cycle to the next.
type Loop struct {
	dial       Dialer
	classifier ClassifierService
	drafter    DraftService
	opts       LoopOptions
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLoop prepares a poll loop. Nothing is dialed until Run or RunOnce.
func NewLoop(dial Dialer, classifier ClassifierService, drafter DraftService, opts LoopOptions) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	now := opts.Pipeline.Now
	if now == nil {
		now = time.Now
	}
	l := &Loop{
		dial:       dial,
		classifier: classifier,
		drafter:    drafter,
		opts:       opts,
		logger:     opts.Pipeline.Logger.With().Str("component", "loop").Logger(),
		now:        now,
	}
	l.opts.Pipeline.Now = now
	l.opts.Pipeline.Notify = l.publish
	return l
}

// Run dials the mail session and then cycles until ctx is cancelled or a cycle fails unexpectedly.
// Cancellation is honoured between cycles and during the sleep; a cycle already under way runs to
// completion. A dial failure is returned wrapped in ErrNoCredentials before any cycle runs.
func (l *Loop) Run(ctx context.Context) error {
	session, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer l.release(session)

	pipeline := New(session, l.classifier, l.drafter, l.opts.Pipeline)
	st := NewState(l.now(), l.opts.Lookback)
	l.logger.Info().
		Time("watermark", st.Watermark).
		Dur("interval", l.opts.Interval).
		Msg("agent active, waiting for new mail")

	cycles := 0
	for {
		if ctx.Err() != nil {
			l.stopped(cycles, nil)
			return nil
		}

		next, err := pipeline.Run(context.WithoutCancel(ctx), st)
		if err != nil {
			l.logger.Error().Err(err).Int("cycles", cycles).Msg("critical error, stopping")
			l.stopped(cycles, err)
			return err
		}
		st = State{Watermark: next.Watermark}
		cycles++

		l.logger.Info().Int("cycle", cycles).Dur("sleep", l.opts.Interval).Msg("cycle complete, sleeping")
		if err := l.opts.Sleep(ctx, l.opts.Interval); err != nil {
			l.stopped(cycles, nil)
			return nil
		}
	}
}

// RunOnce dials, runs a single cycle from a fresh State and closes the session.
func (l *Loop) RunOnce(ctx context.Context) (State, error) {
	session, err := l.connect(ctx)
	if err != nil {
		return State{}, err
	}
	defer l.release(session)

	pipeline := New(session, l.classifier, l.drafter, l.opts.Pipeline)
	return pipeline.Run(ctx, NewState(l.now(), l.opts.Lookback))
}

func (l *Loop) connect(ctx context.Context) (Session, error) {
	session, err := l.dial(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("cannot establish mail session")
		l.stopped(0, err)
		return nil, fmt.Errorf("%w: %w", ErrNoCredentials, err)
	}
	return session, nil
}

func (l *Loop) release(session Session) {
	if err := session.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("closing mail session")
	}
}

func (l *Loop) stopped(cycles int, err error) {
	l.logger.Info().Int("cycles", cycles).Msg("agent stopped")
	l.publish(Event{Kind: EventLoopStopped, At: l.now(), Err: err})
}

func (l *Loop) publish(ev Event) {
	if l.opts.Events == nil {
		return
	}
	select {
	case l.opts.Events <- ev:
	default:
		// dashboard is behind; drop rather than stall the cycle
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
