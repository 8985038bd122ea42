package agent

import "context"

// Send dispatches every queued reply, each on its own: a failed send is logged and the next
// reply is still attempted. Afterwards the per-cycle buffers are cleared and the watermark
// moves to the completion time, never backwards.
func (p *Pipeline) Send(ctx context.Context, st State) State {
	log := p.stageLogger(ctx, "send")

	sent := 0
	for _, reply := range st.Replies {
		to := NormalizeAddress(reply.To)
		receipt, err := p.gateway.SendReply(ctx, to, reply.Subject, reply.Body, reply.ThreadID)
		if err != nil {
			log.Error().Err(err).Str("to", to).Str("thread", reply.ThreadID).Msg("send failed")
			p.emit(ctx, Event{Kind: EventSendFailed, Reply: reply, Err: err})
			continue
		}
		sent++
		log.Info().Str("to", to).Str("thread", reply.ThreadID).Str("id", receipt.ID).Msg("reply sent")
		p.emit(ctx, Event{Kind: EventSent, Reply: reply})
	}
	if len(st.Replies) > 0 {
		log.Info().Int("sent", sent).Int("failed", len(st.Replies)-sent).Msg("batch dispatched")
	}

	watermark := p.now()
	if watermark.Before(st.Watermark) {
		watermark = st.Watermark
	}
	return State{Watermark: watermark}
}
