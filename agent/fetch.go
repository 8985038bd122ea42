package agent

import (
	"context"
	"time"

	"github.com/bassamadnan/mailpilot/gmail"
)

const (
	unknownSender  = "Unknown"
	defaultSubject = "No Subject"
	senderHeader   = "From"
	subjectHeader  = "Subject"
)

// Fetch replaces st.Pending with the latest message of each unread thread received strictly after
// the watermark, in listing order. A gateway failure yields an empty batch, never an error.
func (p *Pipeline) Fetch(ctx context.Context, st State) State {
	log := p.stageLogger(ctx, "fetch")

	msgs, err := p.fetch(ctx, st.Watermark)
	if err != nil {
		log.Error().Err(err).Msg("fetch failed; treating as no new mail")
		msgs = nil
	}
	for _, m := range msgs {
		p.emit(ctx, Event{Kind: EventFetched, Message: m})
	}
	log.Info().Int("messages", len(msgs)).Msg("fetched")

	st.Pending = msgs
	return st
}

func (p *Pipeline) fetch(ctx context.Context, watermark time.Time) ([]InboundMessage, error) {
	log := p.stageLogger(ctx, "fetch")

	refs, err := p.gateway.ListUnreadThreads(ctx, p.query, p.batchSize)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		log.Debug().Msg("no unread threads")
		return nil, nil
	}

	var out []InboundMessage
	for _, ref := range refs {
		thread, err := p.gateway.GetThreadDetail(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		latest, ok := thread.Latest()
		if !ok {
			log.Debug().Str("thread", ref.ID).Msg("thread has no messages")
			continue
		}
		msg := toInbound(ref.ID, latest)
		if !msg.ReceivedAt.After(watermark) {
			log.Debug().Str("message", msg.ID).Time("received", msg.ReceivedAt).Msg("at or before watermark, skipping")
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func toInbound(threadID string, m gmail.Message) InboundMessage {
	sender, ok := m.HeaderValue(senderHeader)
	if !ok {
		sender = unknownSender
	}
	subject, ok := m.HeaderValue(subjectHeader)
	if !ok {
		subject = defaultSubject
	}
	body := m.Body
	if body == "" {
		body = m.Snippet
	}
	return InboundMessage{
		ID:         m.ID,
		ThreadID:   threadID,
		Sender:     sender,
		Subject:    subject,
		Snippet:    m.Snippet,
		Body:       body,
		ReceivedAt: time.UnixMilli(m.InternalDate),
	}
}
