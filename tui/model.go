package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailpilot/agent"
)

type viewState int

const (
	viewLoading viewState = iota
	viewDashboard
	viewFocused
)

const (
	activityItemHeight  = 4
	minListPaneWidth    = 30
	minPreviewPaneWidth = 40
)

// status is where a message got to in the pipeline.
type status string

const (
	statusFetched  status = "fetched"
	statusScreened status = "screened"
	statusSkipped  status = "skipped"
	statusAccepted status = "accepted"
	statusDrafted  status = "drafted"
	statusSent     status = "sent"
	statusFailed   status = "failed"
)

type entry struct {
	Message agent.InboundMessage
	Status  status
	Reason  string
	Reply   agent.OutboundReply
	Err     error
	Updated time.Time
}

// Options wires the dashboard to a running agent.
type Options struct {
	Events   <-chan agent.Event
	Ignorer  SenderIgnorer // optional; enables the ignore-sender key
	Interval time.Duration
	Now      func() time.Time
}

type Model struct {
	events   <-chan agent.Event
	ignorer  SenderIgnorer
	interval time.Duration
	now      func() time.Time

	entries          []*entry
	selectedIdx      int
	viewportTopLine  int
	previewScrollPos int

	currentView viewState
	spinner     spinner.Model

	cycles      int
	cycleActive bool
	watermark   time.Time
	sent        int

	width, height int
	statusBarText string
	statusIsError bool
	statusIsTemp  bool

	agentDone bool
	agentErr  error
}

func NewModel(opts Options) Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return Model{
		events:        opts.Events,
		ignorer:       opts.Ignorer,
		interval:      opts.Interval,
		now:           now,
		currentView:   viewLoading,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
		statusBarText: "Connecting to Gmail...",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEventCmd(m.events),
		statusTickCmd(time.Second),
		m.spinner.Tick,
	)
}

func (m Model) visibleListHeight() int {
	statusBarHeight := 1
	titleHeight := lipgloss.Height(ActivityListTitleStyle.Render(" "))
	return max(m.height-statusBarHeight-titleHeight, 0)
}

func (m Model) itemsThatFit() int {
	return m.visibleListHeight() / activityItemHeight
}

func (m Model) selected() (*entry, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.entries) {
		return nil, false
	}
	return m.entries[m.selectedIdx], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureSelectedVisible()

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case EventMsg:
		m.applyEvent(agent.Event(msg), &cmds)
		if agent.Event(msg).Kind != agent.EventLoopStopped {
			cmds = append(cmds, waitForEventCmd(m.events))
		}

	case EventsClosedMsg:
		m.agentDone = true
		if m.currentView == viewLoading {
			m.currentView = viewDashboard
		}
		if !m.statusIsTemp && !m.statusIsError {
			m.setStandardStatus()
		}

	case SenderIgnoredMsg:
		if msg.Err != nil {
			m.updateStatusError(fmt.Sprintf("Could not ignore %s: %v", msg.Sender, msg.Err))
		} else {
			m.showTemporaryStatus(fmt.Sprintf("Ignoring mail from %s", msg.Sender), 4*time.Second, &cmds)
		}

	case StatusTickMsg:
		if !m.statusIsTemp && !m.statusIsError && m.currentView != viewLoading {
			m.setStandardStatus()
		}
		cmds = append(cmds, statusTickCmd(time.Second))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clearTempStatusMsg:
		if m.statusIsTemp {
			m.statusIsTemp = false
			m.setStandardStatus()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		m.updateStatusBar("Quitting...")
		return tea.Quit
	}

	switch m.currentView {
	case viewDashboard:
		switch key {
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.ensureSelectedVisible()
				m.previewScrollPos = 0
			}
		case "down", "j":
			if m.selectedIdx < len(m.entries)-1 {
				m.selectedIdx++
				m.ensureSelectedVisible()
				m.previewScrollPos = 0
			}
		case "enter":
			if _, ok := m.selected(); ok {
				m.currentView = viewFocused
				m.setStandardStatus()
			}
		case "K":
			if m.previewScrollPos > 0 {
				m.previewScrollPos--
			}
		case "J":
			if e, ok := m.selected(); ok {
				if m.previewScrollPos < len(previewLines(e))-1 {
					m.previewScrollPos++
				}
			}
		case "i":
			return m.ignoreSelected()
		}
	case viewFocused:
		switch key {
		case "esc":
			m.currentView = viewDashboard
			m.setStandardStatus()
		case "i":
			return m.ignoreSelected()
		}
	}
	return nil
}

func (m *Model) ignoreSelected() tea.Cmd {
	e, ok := m.selected()
	if !ok {
		return nil
	}
	if m.ignorer == nil {
		m.updateStatusError("No filter list configured")
		return nil
	}
	sender := agent.NormalizeAddress(e.Message.Sender)
	m.updateStatusBar(fmt.Sprintf("Ignoring %s...", sender))
	return ignoreSenderCmd(m.ignorer, sender)
}

func (m *Model) applyEvent(ev agent.Event, cmds *[]tea.Cmd) {
	if m.currentView == viewLoading {
		m.currentView = viewDashboard
	}

	switch ev.Kind {
	case agent.EventCycleStarted:
		m.cycleActive = true
		m.watermark = ev.Watermark
	case agent.EventFetched:
		m.upsert(ev.Message, ev.At)
		m.showTemporaryStatus(fmt.Sprintf("New: %s", truncate(ev.Message.Subject, 30)), 4*time.Second, cmds)
	case agent.EventScreened:
		m.mark(ev.Message.ID, statusScreened, ev)
	case agent.EventSkipped:
		m.mark(ev.Message.ID, statusSkipped, ev)
	case agent.EventAccepted:
		m.mark(ev.Message.ID, statusAccepted, ev)
	case agent.EventDrafted:
		if e := m.mark(ev.Message.ID, statusDrafted, ev); e != nil {
			e.Reply = ev.Reply
		}
	case agent.EventDraftFailed:
		m.mark(ev.Message.ID, statusFailed, ev)
	case agent.EventSent:
		if e := m.byThread(ev.Reply.ThreadID); e != nil {
			m.mark(e.Message.ID, statusSent, ev)
			m.sent++
		}
	case agent.EventSendFailed:
		if e := m.byThread(ev.Reply.ThreadID); e != nil {
			m.mark(e.Message.ID, statusFailed, ev)
		}
	case agent.EventCycleFinished:
		m.cycleActive = false
		m.cycles++
		m.watermark = ev.Watermark
	case agent.EventLoopStopped:
		m.cycleActive = false
		m.agentDone = true
		m.agentErr = ev.Err
		if ev.Err != nil {
			m.updateStatusError(fmt.Sprintf("Agent stopped: %v", ev.Err))
			return
		}
	}
	if !m.statusIsTemp && !m.statusIsError {
		m.setStandardStatus()
	}
}

// upsert adds a fetched message, keeping the list newest first and the selection on the same entry.
func (m *Model) upsert(msg agent.InboundMessage, at time.Time) {
	for _, e := range m.entries {
		if e.Message.ID == msg.ID {
			e.Message = msg
			e.Status = statusFetched
			e.Updated = at
			return
		}
	}

	selectedID := ""
	if e, ok := m.selected(); ok {
		selectedID = e.Message.ID
	}
	m.entries = append(m.entries, &entry{Message: msg, Status: statusFetched, Updated: at})
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Message.ReceivedAt.After(m.entries[j].Message.ReceivedAt)
	})

	target := selectedID
	if target == "" {
		target = msg.ID
	}
	for i, e := range m.entries {
		if e.Message.ID == target {
			m.selectedIdx = i
			break
		}
	}
	m.ensureSelectedVisible()
}

func (m *Model) mark(id string, s status, ev agent.Event) *entry {
	for _, e := range m.entries {
		if e.Message.ID != id {
			continue
		}
		e.Status = s
		e.Updated = ev.At
		e.Err = ev.Err
		if ev.Reason != "" {
			e.Reason = ev.Reason
		} else if ev.Err != nil {
			e.Reason = ev.Err.Error()
		}
		return e
	}
	return nil
}

// byThread finds the entry a reply belongs to, preferring one still waiting to be sent.
func (m *Model) byThread(threadID string) *entry {
	var found *entry
	for _, e := range m.entries {
		if e.Message.ThreadID != threadID {
			continue
		}
		if e.Status == statusDrafted {
			return e
		}
		if found == nil {
			found = e
		}
	}
	return found
}

func (m *Model) showTemporaryStatus(text string, duration time.Duration, cmds *[]tea.Cmd) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = true
	*cmds = append(*cmds, tea.Tick(duration, func(t time.Time) tea.Msg {
		return clearTempStatusMsg{}
	}))
}

func (m *Model) updateStatusBar(text string) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = false
}

func (m *Model) updateStatusError(text string) {
	m.statusBarText = text
	m.statusIsError = true
	m.statusIsTemp = false
}

func (m *Model) setStandardStatus() {
	if m.statusIsTemp {
		return
	}

	state := "Watching"
	switch {
	case m.agentErr != nil:
		state = "Agent failed"
	case m.agentDone:
		state = "Agent stopped"
	case m.cycleActive:
		state = "Processing"
	}
	watermark := "-"
	if !m.watermark.IsZero() {
		watermark = m.watermark.Local().Format("15:04:05")
	}

	statusMsg := fmt.Sprintf(" %s (poll: %v) | cycles: %d | sent: %d | since %s | %s ",
		state, m.interval, m.cycles, m.sent, watermark, m.now().Format("15:04:05"))

	keyHints := "[q]:Quit"
	switch m.currentView {
	case viewDashboard:
		keyHints += " | [↑↓/jk]:Nav | [Enter]:Full | [KJ]:Scroll | [i]:Ignore sender"
	case viewFocused:
		keyHints += " | [Esc]:Back | [i]:Ignore sender"
	}
	m.updateStatusBar(statusMsg + "| " + keyHints)
}

func (m *Model) ensureSelectedVisible() {
	if len(m.entries) == 0 {
		m.viewportTopLine = 0
		return
	}

	fit := m.itemsThatFit()
	if fit <= 0 {
		m.viewportTopLine = m.selectedIdx
		return
	}

	if m.selectedIdx < m.viewportTopLine {
		m.viewportTopLine = m.selectedIdx
	} else if m.selectedIdx >= m.viewportTopLine+fit {
		m.viewportTopLine = m.selectedIdx - fit + 1
	}
	m.viewportTopLine = min(max(m.viewportTopLine, 0), max(len(m.entries)-fit, 0))
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing terminal size..."
	}

	statusBarHeight := 1
	contentHeight := max(m.height-statusBarHeight, 0)

	var main string
	switch m.currentView {
	case viewLoading:
		main = lipgloss.Place(m.width, contentHeight, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" "+m.statusBarText)
	case viewDashboard:
		listWidth := max(int(float64(m.width)*0.35), minListPaneWidth)
		if listWidth > m.width-minPreviewPaneWidth && m.width > minPreviewPaneWidth {
			listWidth = m.width - minPreviewPaneWidth
		}
		if m.width < minListPaneWidth+minPreviewPaneWidth {
			listWidth = min(m.width, minListPaneWidth)
		}
		listWidth = min(max(listWidth, 0), m.width)
		previewWidth := m.width - listWidth

		main = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderActivityList(listWidth, contentHeight),
			m.renderPreviewPane(previewWidth, contentHeight),
		)
	case viewFocused:
		main = m.renderFocusedView(m.width, contentHeight)
	}

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar()))
}

func (m Model) renderActivityList(paneWidth, paneHeight int) string {
	titleText := "Activity"
	if m.cycleActive {
		titleText = "Activity " + m.spinner.View()
	}
	title := ActivityListTitleStyle.Render(titleText)
	itemsHeight := max(paneHeight-lipgloss.Height(title), 0)
	contentWidth := max(paneWidth-ActivityItemStyle.GetHorizontalPadding()-4, 10)

	start := min(max(m.viewportTopLine, 0), len(m.entries))
	end := min(start+itemsHeight/activityItemHeight, len(m.entries))

	var items []string
	if paneWidth > 0 && paneHeight > 0 {
		now := m.now()
		for i := start; i < end; i++ {
			items = append(items, formatActivityItem(m.entries[i], i == m.selectedIdx, contentWidth, now))
		}
	}
	body := strings.Join(items, "\n")
	if len(m.entries) == 0 {
		body = NormalSecondaryTextStyle.Render("  Waiting for new mail...")
	}

	return ActivityListStyle.Width(paneWidth).Height(paneHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// previewLines is the scrollable part of the preview: the message body and, once drafted, the reply.
func previewLines(e *entry) []string {
	text := strings.ReplaceAll(e.Message.Body, "\r\n", "\n")
	if e.Reply.Body != "" {
		text += "\n\n--- Reply ---\n" + e.Reply.Body
	}
	return strings.Split(text, "\n")
}

func (m Model) renderHeaders(e *entry, width int) string {
	var b strings.Builder
	row := func(k, v string) {
		fmt.Fprintf(&b, "%s %s\n", HeaderKeyStyle.Render(k), HeaderValStyle.Render(truncate(v, max(width-len(k)-1, 0))))
	}
	row("From:", e.Message.Sender)
	date := "N/A"
	if !e.Message.ReceivedAt.IsZero() {
		date = e.Message.ReceivedAt.Local().Format(time.RFC1123)
	}
	row("Date:", date)
	row("Subject:", e.Message.Subject)
	fmt.Fprintf(&b, "%s %s\n", HeaderKeyStyle.Render("Status:"), statusStyle(e.Status).Render(string(e.Status)))
	if e.Reason != "" {
		row("Reason:", e.Reason)
	}
	b.WriteString(strings.Repeat(BoxHorizontal, max(width/2, 0)))
	return b.String()
}

func (m Model) renderPreviewPane(paneWidth, paneHeight int) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	titleHeight := lipgloss.Height(TitleStyle.Render(" "))
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding()
	maxContentHeight := max(paneHeight-titleHeight-ContentBoxStyle.GetVerticalPadding(), 0)

	e, ok := m.selected()
	if !ok {
		welcome := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContentHeight).Padding(1).
			Render("\n[mailpilot]\n\nReplies go out automatically to customers asking about your products.\nEvery message the agent sees shows up on the left.")
		return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
			lipgloss.JoinVertical(lipgloss.Top, TitleStyle.Render("Home"), welcome))
	}

	title := TitleStyle.Render("Preview: " + truncate(e.Message.Subject, paneWidth-(TitleStyle.GetHorizontalPadding()+12)))
	headers := m.renderHeaders(e, innerWidth)
	bodyHeight := max(maxContentHeight-lipgloss.Height(headers), 0)

	lines := previewLines(e)
	startLine := min(max(m.previewScrollPos, 0), max(len(lines)-bodyHeight, 0))
	endLine := min(startLine+bodyHeight, len(lines))
	body := strings.Join(lines[startLine:endLine], "\n")

	content := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContentHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, headers, BodyStyle.Render(body)))
	return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
		lipgloss.JoinVertical(lipgloss.Top, title, content))
}

func (m Model) renderFocusedView(paneWidth, paneHeight int) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	titleHeight := lipgloss.Height(TitleStyle.Render(" "))
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding()
	maxContentHeight := max(paneHeight-titleHeight-ContentBoxStyle.GetVerticalPadding(), 0)

	e, ok := m.selected()
	if !ok {
		return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
			lipgloss.JoinVertical(lipgloss.Top, TitleStyle.Render("Error"), "No message selected."))
	}

	title := TitleStyle.Render("Full View: " + truncate(e.Message.Subject, paneWidth-(TitleStyle.GetHorizontalPadding()+15)))
	var b strings.Builder
	b.WriteString(m.renderHeaders(e, innerWidth))
	b.WriteString("\n")
	b.WriteString(BodyStyle.Render(strings.ReplaceAll(e.Message.Body, "\r\n", "\n")))
	if e.Reply.Body != "" {
		b.WriteString("\n")
		b.WriteString(ReplyTitleStyle.Render(fmt.Sprintf("Reply to %s (%s)", agent.NormalizeAddress(e.Reply.To), e.Reply.Subject)))
		b.WriteString("\n")
		b.WriteString(e.Reply.Body)
	}
	content := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContentHeight).Render(b.String())
	return ContentBoxStyle.Width(paneWidth).Height(paneHeight).Render(
		lipgloss.JoinVertical(lipgloss.Top, title, content))
}

func (m Model) renderStatusBar() string {
	style := StatusBarNormalStyle
	if m.statusIsError {
		style = StatusBarErrorStyle
	} else if m.statusIsTemp {
		style = StatusBarSuccessStyle
	}
	return style.Width(m.width).Render(truncate(m.statusBarText, m.width))
}

// Run shows the dashboard until the user quits.
func Run(opts Options) error {
	_, err := tea.NewProgram(NewModel(opts), tea.WithAltScreen()).Run()
	return err
}
