package agent

import (
	"context"
	"fmt"
)

// Filter keeps the pending messages the classifier judges to be from a real person and on topic.
// A classifier or decoding failure drops that message only; the rest of the batch is still judged.
func (p *Pipeline) Filter(ctx context.Context, st State) State {
	log := p.stageLogger(ctx, "filter")

	passed := make([]InboundMessage, 0, len(st.Pending))
	for _, msg := range st.Pending {
		mlog := log.With().Str("message", msg.ID).Str("subject", msg.Subject).Logger()

		if p.screener != nil {
			if drop, rule := p.screener.Screen(msg.Sender, msg.Subject, msg.Snippet); drop {
				mlog.Info().Str("rule", rule).Msg("screened out")
				p.emit(ctx, Event{Kind: EventScreened, Message: msg, Reason: rule})
				continue
			}
		}

		verdict, err := p.classify(ctx, msg)
		if err != nil {
			mlog.Warn().Err(err).Msg("classification failed; dropping message")
			p.emit(ctx, Event{Kind: EventSkipped, Message: msg, Err: err})
			continue
		}
		if !verdict.Passes() {
			mlog.Info().
				Bool("human", verdict.IsHuman).
				Bool("relevant", verdict.IsRelevant).
				Str("reason", verdict.Reason).
				Msg("skipping")
			p.emit(ctx, Event{Kind: EventSkipped, Message: msg, Reason: verdict.Reason})
			continue
		}

		mlog.Info().Str("reason", verdict.Reason).Msg("accepted")
		p.emit(ctx, Event{Kind: EventAccepted, Message: msg, Reason: verdict.Reason})
		passed = append(passed, msg)
	}

	st.Pending = passed
	return st
}

func (p *Pipeline) classify(ctx context.Context, msg InboundMessage) (Verdict, error) {
	raw, err := p.classifier.Classify(ctx, msg.Sender, msg.Subject, msg.Snippet)
	if err != nil {
		return Verdict{}, fmt.Errorf("classify: %w", err)
	}
	return DecodeVerdict(raw)
}
