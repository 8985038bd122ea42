package tui

import (
	"time"

	"github.com/bassamadnan/mailpilot/agent"
)

// EventMsg carries one pipeline event into the model.
type EventMsg agent.Event

// StatusTickMsg refreshes the clock in the status bar.
type StatusTickMsg struct{ Time time.Time }

// EventsClosedMsg signals that the agent closed its event channel.
type EventsClosedMsg struct{}

// SenderIgnoredMsg is the result of adding a sender to the ignore list.
type SenderIgnoredMsg struct {
	Sender string
	Err    error
}

type clearTempStatusMsg struct{}
