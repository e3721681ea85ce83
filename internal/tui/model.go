// Package tui is the terminal front-end: a chat transcript with a
// task-list sidebar, a virtual-file panel, and a thread history picker.
// All reconciliation logic lives below it; the model only reads the
// store, the projector, and the identity, and drives the transport.
package tui

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"go.uber.org/zap"

	"threadfu/internal/history"
	"threadfu/internal/projection"
	"threadfu/internal/thread"
	"threadfu/internal/transport"
	"threadfu/internal/types"
)

// =============================================================================
// MESSAGES
// =============================================================================

// TodosMsg delivers a debounced task-list update.
type TodosMsg []types.TodoItem

// FilesMsg delivers a debounced virtual-file update.
type FilesMsg map[string]string

// RunDoneMsg reports streaming run completion.
type RunDoneMsg struct{ Err error }

type sendResultMsg struct{ err error }

type historyMsg struct {
	threads []types.ThreadSummary
	err     error
}

type threadLoadedMsg struct {
	threadID string
	err      error
}

type refreshMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

type mode int

const (
	modeChat mode = iota
	modeHistory
)

type panel int

const (
	panelNone panel = iota
	panelTodos
	panelFiles
)

// togglePanel returns panelNone when the current panel already equals the
// target, otherwise the target.
func togglePanel(current, target panel) panel {
	if current == target {
		return panelNone
	}
	return target
}

// Model is the bubbletea model for the chat front-end.
type Model struct {
	adapter   transport.Adapter
	store     *thread.MessageStore
	identity  *thread.Identity
	projector *projection.Projector
	index     *history.Index
	log       *zap.Logger

	mode  mode
	panel panel

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	todos []types.TodoItem
	files map[string]string

	threads   []types.ThreadSummary // flattened in grouped display order
	groups    history.Groups
	selection int

	isLoading bool
	streaming bool // true when the adapter is the streaming variant
	errText   string
	width     int
	height    int
	ready     bool
}

// New creates the TUI model. streaming selects the refresh strategy:
// the streaming variant repaints on a tick while a run is live, the
// polling variant repaints once per completed send.
func New(adapter transport.Adapter, store *thread.MessageStore, identity *thread.Identity, index *history.Index, streaming bool, log *zap.Logger) *Model {
	ta := textarea.New()
	ta.Placeholder = "Message the agent..."
	ta.Prompt = "┃ "
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if log == nil {
		log = zap.NewNop()
	}

	return &Model{
		adapter:   adapter,
		store:     store,
		identity:  identity,
		projector: projection.NewProjector(log),
		index:     index,
		log:       log,
		input:     ta,
		spin:      sp,
		files:     map[string]string{},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sendResultMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		m.refreshTranscript()
		return m, nil

	case RunDoneMsg:
		m.isLoading = false
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		m.refreshTranscript()
		return m, nil

	case TodosMsg:
		m.todos = msg
		return m, nil

	case FilesMsg:
		m.files = msg
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			m.mode = modeChat
			return m, nil
		}
		m.groups = history.Group(msg.threads, time.Now())
		// Selection indexes the grouped display order, not fetch order.
		m.threads = m.threads[:0]
		m.threads = append(m.threads, m.groups.Today...)
		m.threads = append(m.threads, m.groups.Yesterday...)
		m.threads = append(m.threads, m.groups.ThisWeek...)
		m.threads = append(m.threads, m.groups.Older...)
		m.selection = 0
		return m, nil

	case threadLoadedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.identity.Resume(msg.threadID)
			m.mode = modeChat
		}
		m.refreshTranscript()
		return m, nil

	case refreshMsg:
		m.refreshTranscript()
		if m.isLoading && m.streaming {
			return m, tick()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeHistory {
		return m.handleHistoryKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		// Only the streaming variant can actually cancel; for the
		// polling variant this is inert by design.
		m.adapter.Stop()
		m.isLoading = false
		return m, nil

	case "ctrl+n":
		m.identity.Reset()
		m.store.Clear()
		m.todos = nil
		m.files = map[string]string{}
		m.errText = ""
		m.refreshTranscript()
		return m, nil

	case "ctrl+h":
		m.mode = modeHistory
		return m, m.fetchHistory()

	case "ctrl+t":
		m.panel = togglePanel(m.panel, panelTodos)
		m.layout()
		m.refreshTranscript()
		return m, nil

	case "ctrl+f":
		m.panel = togglePanel(m.panel, panelFiles)
		m.layout()
		m.refreshTranscript()
		return m, nil

	case "enter":
		if m.isLoading {
			return m, nil // send disabled while a run is in flight
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.errText = ""
		m.isLoading = true
		cmds := []tea.Cmd{m.send(text), m.spin.Tick}
		if m.streaming {
			cmds = append(cmds, tick())
		}
		m.refreshTranscript()
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.mode = modeChat
		return m, nil
	case "up", "k":
		if m.selection > 0 {
			m.selection--
		}
		return m, nil
	case "down", "j":
		if m.selection < len(m.threads)-1 {
			m.selection++
		}
		return m, nil
	case "enter":
		if m.selection < 0 || m.selection >= len(m.threads) {
			return m, nil
		}
		picked := m.threads[m.selection]
		m.isLoading = true
		return m, m.loadThread(picked.ID)
	}
	return m, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		err := m.adapter.Send(context.Background(), text)
		if m.streaming && err == nil {
			// Completion arrives later as RunDoneMsg.
			return refreshMsg{}
		}
		return sendResultMsg{err: err}
	}
}

func (m *Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		threads, err := m.index.Fetch(context.Background())
		return historyMsg{threads: threads, err: err}
	}
}

func (m *Model) loadThread(threadID string) tea.Cmd {
	return func() tea.Msg {
		err := m.adapter.LoadThread(context.Background(), threadID)
		return threadLoadedMsg{threadID: threadID, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.mode == modeHistory {
		return m.historyView()
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")

	main := m.viewport.View()
	if m.panel != panelNone {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, m.panelView())
	}
	b.WriteString(main)
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(errorStyle.Render("✗ " + m.errText))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · esc stop · ctrl+n new · ctrl+h history · ctrl+t todos · ctrl+f files · ctrl+c quit"))
	return b.String()
}

func (m *Model) headerView() string {
	title := titleStyle.Render("threadfu")
	var status string
	switch state, id := m.identity.State(); state {
	case thread.IdentityAssigned:
		status = statusStyle.Render("thread " + shortID(id))
	case thread.IdentityPending:
		status = statusStyle.Render("creating thread...")
	default:
		status = statusStyle.Render("new conversation")
	}
	if m.isLoading {
		status = m.spin.View() + " " + status
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
}

// refreshTranscript recomputes the projection and repaints the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	entries := m.projector.Project(m.store.Messages())
	wrapAt := m.viewport.Width - 2
	if wrapAt < 20 {
		wrapAt = 20
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.ShowAvatar {
			switch entry.Message.Role {
			case types.RoleHuman:
				b.WriteString(humanStyle.Render("you"))
			case types.RoleAI:
				b.WriteString(aiStyle.Render("agent"))
			}
			b.WriteString("\n")
		}
		if text := entry.Message.Text(); text != "" {
			b.WriteString(wordwrap.String(text, wrapAt))
			b.WriteString("\n")
		}
		for _, call := range entry.ToolCalls {
			b.WriteString(renderToolCall(call, wrapAt))
		}
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func renderToolCall(call types.ToolCallView, wrapAt int) string {
	var b strings.Builder
	if call.Status == types.ToolCallCompleted {
		b.WriteString(toolDoneStyle.Render("✓ " + call.Name))
	} else {
		b.WriteString(toolPendingStyle.Render("⋯ " + call.Name))
	}
	b.WriteString("\n")
	if call.Status == types.ToolCallCompleted && call.Result != "" {
		result := call.Result
		if len(result) > 500 {
			result = result[:500] + "…"
		}
		b.WriteString(helpStyle.Render(wordwrap.String(result, wrapAt)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) panelView() string {
	var b strings.Builder
	switch m.panel {
	case panelTodos:
		b.WriteString(groupStyle.Render("Tasks"))
		b.WriteString("\n")
		if len(m.todos) == 0 {
			b.WriteString(helpStyle.Render("no tasks"))
		}
		for _, todo := range m.todos {
			b.WriteString(todoGlyph(todo.Status) + " " + todo.Content + "\n")
		}
	case panelFiles:
		b.WriteString(groupStyle.Render("Files"))
		b.WriteString("\n")
		if len(m.files) == 0 {
			b.WriteString(helpStyle.Render("no files"))
		}
		paths := make([]string, 0, len(m.files))
		for path := range m.files {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			b.WriteString(path + "\n")
		}
	}
	return panelStyle.Width(m.panelWidth()).Height(m.viewport.Height).Render(b.String())
}

func todoGlyph(status string) string {
	switch status {
	case types.TodoCompleted:
		return toolDoneStyle.Render("✓")
	case types.TodoInProgress:
		return toolPendingStyle.Render("▸")
	default:
		return "○"
	}
}

func (m *Model) historyView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Threads"))
	b.WriteString("\n\n")

	pos := 0
	renderGroup := func(label string, group []types.ThreadSummary) {
		if len(group) == 0 {
			return
		}
		b.WriteString(groupStyle.Render(label))
		b.WriteString("\n")
		for _, t := range group {
			id := statusStyle.Render(shortID(t.ID))
			if pos == m.selection {
				b.WriteString(selectedStyle.Render("> "+t.Title) + "  " + id)
			} else {
				b.WriteString("  " + t.Title + "  " + id)
			}
			b.WriteString("\n")
			pos++
		}
		b.WriteString("\n")
	}

	renderGroup("Today", m.groups.Today)
	renderGroup("Yesterday", m.groups.Yesterday)
	renderGroup("This week", m.groups.ThisWeek)
	renderGroup("Older", m.groups.Older)

	if len(m.threads) == 0 {
		b.WriteString(helpStyle.Render("no threads yet"))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter resume · esc back · ctrl+c quit"))
	return b.String()
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) layout() {
	inputHeight := 3
	chromeHeight := 4 // header, error line, help line, spacing
	vpHeight := m.height - inputHeight - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	vpWidth := m.width
	if m.panel != panelNone {
		vpWidth = m.width - m.panelWidth() - 2
	}
	if vpWidth < 20 {
		vpWidth = 20
	}

	if m.viewport.Width == 0 {
		m.viewport = viewport.New(vpWidth, vpHeight)
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(m.width - 2)
}

func (m *Model) panelWidth() int {
	w := m.width / 3
	if w < 24 {
		w = 24
	}
	return w
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
