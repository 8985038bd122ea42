package agent

import "time"

// InboundMessage is the latest message of an unread thread, as seen by the fetch stage.
type InboundMessage struct {
	ID         string
	ThreadID   string
	Sender     string // raw From header, e.g. "Jane Doe <jane@x.com>"
	Subject    string
	Snippet    string
	Body       string
	ReceivedAt time.Time
}

// Verdict is the classifier's judgment on one message.
type Verdict struct {
	IsHuman    bool
	IsRelevant bool
	Reason     string
}

// Passes reports whether the message should get a reply.
func (v Verdict) Passes() bool {
	return v.IsHuman && v.IsRelevant
}

// OutboundReply is a drafted reply waiting to be sent.
type OutboundReply struct {
	ThreadID string
	To       string // raw sender string; normalized at send time
	Subject  string
	Body     string
}

// State is threaded through every stage of a cycle and carried from one cycle to the next.
// Pending and Replies are per-cycle buffers and are empty once a cycle completes.
type State struct {
	Pending   []InboundMessage
	Replies   []OutboundReply
	Watermark time.Time
}

// NewState returns the initial state of a process: nothing queued, and a watermark lookback
// before now so a fresh start does not reprocess the whole mailbox.
func NewState(now time.Time, lookback time.Duration) State {
	return State{Watermark: now.Add(-lookback)}
}

// ReplySubject builds the subject line of a reply.
func ReplySubject(subject string) string {
	return "Re: " + subject
}
