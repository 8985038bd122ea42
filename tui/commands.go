package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailpilot/agent"
)

// SenderIgnorer persists a sender to the ignore list. *config.Manager implements it.
type SenderIgnorer interface {
	AddIgnoreSender(sender string) error
}

// waitForEventCmd delivers the next agent event, or EventsClosedMsg once the channel is closed.
func waitForEventCmd(events <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}

func statusTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusTickMsg{Time: t}
	})
}

func ignoreSenderCmd(ignorer SenderIgnorer, sender string) tea.Cmd {
	return func() tea.Msg {
		return SenderIgnoredMsg{Sender: sender, Err: ignorer.AddIgnoreSender(sender)}
	}
}
