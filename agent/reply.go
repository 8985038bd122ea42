package agent

import (
	"context"
	"fmt"
	"strings"
)

// Reply drafts one OutboundReply per pending message, in order. When the draft service fails
// or returns nothing the message is skipped and the rest of the batch continues.
func (p *Pipeline) Reply(ctx context.Context, st State) State {
	log := p.stageLogger(ctx, "reply")

	replies := make([]OutboundReply, 0, len(st.Pending))
	for _, msg := range st.Pending {
		body, err := p.draft(ctx, msg)
		if err != nil {
			log.Warn().Err(err).Str("message", msg.ID).Str("subject", msg.Subject).Msg("draft failed; no reply this cycle")
			p.emit(ctx, Event{Kind: EventDraftFailed, Message: msg, Err: err})
			continue
		}
		reply := OutboundReply{
			ThreadID: msg.ThreadID,
			To:       msg.Sender,
			Subject:  ReplySubject(msg.Subject),
			Body:     body,
		}
		log.Debug().Str("message", msg.ID).Int("chars", len(body)).Msg("drafted")
		p.emit(ctx, Event{Kind: EventDrafted, Message: msg, Reply: reply})
		replies = append(replies, reply)
	}

	st.Replies = replies
	return st
}

func (p *Pipeline) draft(ctx context.Context, msg InboundMessage) (string, error) {
	body, err := p.drafter.Draft(ctx, msg.Subject, msg.Snippet)
	if err != nil {
		return "", fmt.Errorf("draft: %w", err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyDraft
	}
	return body, nil
}
