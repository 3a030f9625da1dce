package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"supportbot/internal/prompt"
	"supportbot/internal/service"
	"supportbot/internal/textutil"
)

// historyLimit bounds how many turns the console keeps.
const historyLimit = 20

var sampleQuestions = []string{
	"Can I cancel my order?",
	"How do I request a refund?",
	"Where is order #21345?",
	"My order is missing an item, what should I do?",
}

// SupportPort is the TUI-facing subset of the support service.
type SupportPort interface {
	Ask(ctx context.Context, question, orderID string) (*service.Reply, error)
	Rebuild(ctx context.Context) error
	Overview() string
	DocumentCount() int
}

type focusField int

const (
	focusQuestion focusField = iota
	focusOrder
)

type replyMsg struct {
	reply *service.Reply
	err   error
}

type rebuildMsg struct {
	err error
}

// Model is the Bubble Tea model for the support console.
type Model struct {
	ctx      context.Context
	service  SupportPort
	question textinput.Model
	orderID  textinput.Model
	focus    focusField
	viewport viewport.Model
	history  []*service.Reply
	cursor   int
	summary  string
	status   string
	busy     bool
	ready    bool
	samples  bool
}

// New creates a new console model. ctx bounds every service call.
func New(ctx context.Context, svc SupportPort) Model {
	q := textinput.New()
	q.Prompt = "? "
	q.Placeholder = "Ask a question and press Enter"
	q.CharLimit = 0
	q.Focus()

	o := textinput.New()
	o.Prompt = "# "
	o.Placeholder = "Order id (optional)"
	o.CharLimit = 64

	return Model{
		ctx:      ctx,
		service:  svc,
		question: q,
		orderID:  o,
		viewport: viewport.New(0, 0),
		summary:  svc.Overview(),
		status:   fmt.Sprintf("%d policy paragraphs indexed. Tab switches fields, F1 shows sample questions, ctrl+r rebuilds.", svc.DocumentCount()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and service events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 2*(ih+1) + 1 // header+summary, status, two inputs, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.push(msg.reply)
		m.samples = false
		m.status = fmt.Sprintf("%d excerpts retrieved", len(msg.reply.Excerpts))
		m.question.SetValue("")
		m.viewport.SetContent(m.renderCurrent())
		m.viewport.GotoTop()
		return m, nil
	case rebuildMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Rebuild failed: " + msg.err.Error()
			return m, nil
		}
		m.summary = m.service.Overview()
		m.status = fmt.Sprintf("Index rebuilt: %d policy paragraphs.", m.service.DocumentCount())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "f1":
			m.samples = !m.samples
			m.viewport.SetContent(m.renderCurrent())
			m.viewport.GotoTop()
			return m, nil
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		case "ctrl+r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Rebuilding index..."
			return m, m.rebuildCmd()
		case "up":
			m.samples = false
			if m.cursor > 0 {
				m.cursor--
				m.viewport.SetContent(m.renderCurrent())
			}
			return m, nil
		case "down":
			m.samples = false
			if m.cursor < len(m.history)-1 {
				m.cursor++
				m.viewport.SetContent(m.renderCurrent())
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	if m.focus == focusOrder {
		m.orderID, cmd = m.orderID.Update(msg)
	} else {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

// View renders the console layout and the selected turn.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Memo Hero Delivery support")
	summary := summaryStyle.Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	question := inputBoxStyle.Render(m.question.View())
	order := inputBoxStyle.Render(m.orderID.View())
	status := statusStyle.Render(m.status)
	return strings.Join([]string{header, summary, results, question, order, status}, "\n")
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.question.Value())
	if q == "" || m.busy {
		return m, nil
	}
	m.busy = true
	m.status = "Searching policies..."
	ctx, svc, orderID := m.ctx, m.service, strings.TrimSpace(m.orderID.Value())
	return m, func() tea.Msg {
		reply, err := svc.Ask(ctx, q, orderID)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) rebuildCmd() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		return rebuildMsg{err: svc.Rebuild(ctx)}
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusQuestion {
		m.focus = focusOrder
		m.question.Blur()
		m.orderID.Focus()
		return
	}
	m.focus = focusQuestion
	m.orderID.Blur()
	m.question.Focus()
}

// push appends a turn, drops the oldest past historyLimit and selects the newest.
func (m *Model) push(r *service.Reply) {
	m.history = append(m.history, r)
	if over := len(m.history) - historyLimit; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	m.cursor = len(m.history) - 1
}

func (m Model) renderCurrent() string {
	if m.samples {
		var b strings.Builder
		b.WriteString(labelStyle.Render("Sample questions:"))
		for _, q := range sampleQuestions {
			b.WriteString("\n- " + q)
		}
		return b.String()
	}
	if len(m.history) == 0 {
		return "No questions yet."
	}
	r := m.history[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d/%d\n", m.cursor+1, len(m.history))
	fmt.Fprintf(&b, "Q: %s\n\n", r.Question)
	for i, ex := range r.Excerpts {
		fmt.Fprintf(&b, "Excerpt %d/%d  distance=%.3f\n", i+1, len(r.Excerpts), ex.Distance)
		b.WriteString(highlightBestSentence(ex.Text, r.Question))
		b.WriteString("\n\n")
	}
	b.WriteString(labelStyle.Render("Order info:"))
	b.WriteString("\n")
	b.WriteString(prompt.OrderText(prompt.Input{Order: r.Order, OrderID: r.OrderID}))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Prompt:"))
	b.WriteString("\n")
	b.WriteString(r.Prompt)
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := textutil.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := textutil.Overlap(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}
