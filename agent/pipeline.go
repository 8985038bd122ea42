package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultQuery     = "is:unread"
	DefaultBatchSize = 3
)

// Options tunes a Pipeline. Zero values fall back to the defaults.
type Options struct {
	Query     string
	BatchSize int64
	Screener  Screener
	Logger    zerolog.Logger
	Now       func() time.Time
	Notify    func(Event)
}

// Pipeline runs one cycle: Fetch, Filter, Reply, Send, in that order and with no branching.
// It keeps no state between runs other than what is passed in and returned.
type Pipeline struct {
	gateway    MailGateway
	classifier ClassifierService
	drafter    DraftService
	screener   Screener

	query     string
	batchSize int64
	logger    zerolog.Logger
	now       func() time.Time
	notify    func(Event)
}

// New builds a pipeline over the given capabilities.
func New(gateway MailGateway, classifier ClassifierService, drafter DraftService, opts Options) *Pipeline {
	p := &Pipeline{
		gateway:    gateway,
		classifier: classifier,
		drafter:    drafter,
		screener:   opts.Screener,
		query:      opts.Query,
		batchSize:  opts.BatchSize,
		logger:     opts.Logger,
		now:        opts.Now,
		notify:     opts.Notify,
	}
	if p.query == "" {
		p.query = DefaultQuery
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

type stage struct {
	name string
	run  func(context.Context, State) State
}

// Run executes a full cycle. Recoverable failures are handled inside the stages; an error
// is only returned when a stage fails unexpectedly, and it wraps ErrStageFailed.
func (p *Pipeline) Run(ctx context.Context, st State) (out State, err error) {
	ctx = withCycle(ctx, uuid.NewString())
	current := ""
	defer func() {
		if r := recover(); r != nil {
			out = st
			err = fmt.Errorf("%w: %s: %v", ErrStageFailed, current, r)
		}
	}()

	clog := p.cycleLogger(ctx)
	p.emit(ctx, Event{Kind: EventCycleStarted, Watermark: st.Watermark})
	clog.Debug().Time("watermark", st.Watermark).Msg("cycle started")

	for _, s := range []stage{
		{"fetch", p.Fetch},
		{"filter", p.Filter},
		{"reply", p.Reply},
		{"send", p.Send},
	} {
		current = s.name
		st = s.run(ctx, st)
	}

	p.emit(ctx, Event{Kind: EventCycleFinished, Watermark: st.Watermark})
	clog.Info().Time("watermark", st.Watermark).Msg("cycle complete")
	return st, nil
}

type cycleKey struct{}

func withCycle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

func cycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleKey{}).(string)
	return id
}

func (p *Pipeline) cycleLogger(ctx context.Context) zerolog.Logger {
	return p.logger.With().Str("cycle", cycleID(ctx)).Logger()
}

func (p *Pipeline) stageLogger(ctx context.Context, component string) zerolog.Logger {
	return p.logger.With().Str("component", component).Str("cycle", cycleID(ctx)).Logger()
}

func (p *Pipeline) emit(ctx context.Context, ev Event) {
	if p.notify == nil {
		return
	}
	ev.Cycle = cycleID(ctx)
	ev.At = p.now()
	p.notify(ev)
}
