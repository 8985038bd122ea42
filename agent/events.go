package agent

import "time"

// EventKind names a step of a cycle.
type EventKind string

const (
	EventCycleStarted  EventKind = "cycle_started"
	EventFetched       EventKind = "fetched"
	EventScreened      EventKind = "screened"
	EventSkipped       EventKind = "skipped"
	EventAccepted      EventKind = "accepted"
	EventDrafted       EventKind = "drafted"
	EventDraftFailed   EventKind = "draft_failed"
	EventSent          EventKind = "sent"
	EventSendFailed    EventKind = "send_failed"
	EventCycleFinished EventKind = "cycle_finished"
	EventLoopStopped   EventKind = "loop_stopped"
)

// Event reports pipeline progress to observers such as the dashboard.
type Event struct {
	Kind      EventKind
	Cycle     string
	At        time.Time
	Message   InboundMessage
	Reply     OutboundReply
	Reason    string
	Err       error
	Watermark time.Time
}
