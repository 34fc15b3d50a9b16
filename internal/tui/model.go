// Package tui is the terminal chat page: one thread fed by typed text, voice
// and scanned documents, with the reasoning graph on demand.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/internal/notify"
	"github.com/Suraj127-git/medchat/usecase"
)

const busyResetMessage = "Wait for the reply before starting a new conversation."

// Services are the components the page drives
type Services struct {
	Conversation *usecase.ConversationService
	Capture      *usecase.CaptureController
	Gateway      *usecase.ExtractionGateway
	Graph        *usecase.GraphViewer
	Notices      *notify.Center
}

// Model is the bubbletea model of the chat page
type Model struct {
	ctx    context.Context
	svc    Services
	keys   KeyMap
	logger *zap.Logger

	thread   viewport.Model
	graph    viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	width, height int
	ready         bool

	snapshot     usecase.Snapshot
	captureState entities.CaptureState
	notices      []entities.Notice
	graphVisible bool
	quitting     bool

	now func() time.Time
}

// New creates the chat page. ctx bounds every request the page starts.
func New(ctx context.Context, svc Services, logger *zap.Logger) Model {
	input := textinput.New()
	input.Placeholder = "Ask a medical question, or /help"
	input.Prompt = "› "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:          ctx,
		svc:          svc,
		keys:         DefaultKeyMap(),
		logger:       logger,
		input:        input,
		spinner:      sp,
		help:         help.New(),
		snapshot:     svc.Conversation.Snapshot(),
		captureState: svc.Capture.State(),
		now:          time.Now,
	}
}

// Init starts the event waiters
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitThread(m.svc.Conversation.Events()),
		waitCapture(m.svc.Capture.Events()),
		waitNotice(m.svc.Notices.Events()),
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case threadMsg:
		wasPending := m.snapshot.Pending
		m.snapshot = m.svc.Conversation.Snapshot()
		m.refreshThread()
		cmds := []tea.Cmd{waitThread(m.svc.Conversation.Events())}
		if m.snapshot.Pending && !wasPending {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case captureMsg:
		m.captureState = msg.To
		return m, waitCapture(m.svc.Capture.Events())

	case noticeMsg:
		m.notices = m.svc.Notices.Active(m.now())
		return m, tea.Batch(waitNotice(m.svc.Notices.Events()), noticeTick(m.svc.Notices.TTL()))

	case noticeTickMsg:
		m.notices = m.svc.Notices.Active(m.now())
		return m, nil

	case graphDoneMsg:
		if msg.err == nil {
			m.graphVisible = m.svc.Graph.Visible()
			m.refreshGraph()
		}
		return m, nil

	case extractionDoneMsg:
		if msg.err != nil {
			m.logger.Debug("Document upload failed", zap.Error(msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		if m.snapshot.Pending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height

	bodyHeight := m.height - chromeHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	if !m.ready {
		m.thread = viewport.New(m.width, bodyHeight)
		m.graph = viewport.New(m.width, bodyHeight)
		m.ready = true
	} else {
		m.thread.Width, m.thread.Height = m.width, bodyHeight
		m.graph.Width, m.graph.Height = m.width, bodyHeight
	}
	m.input.Width = m.width - 4
	m.help.Width = m.width

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(m.width-6, 20)),
	)
	if err != nil {
		m.logger.Warn("Markdown renderer unavailable", zap.Error(err))
		renderer = nil
	}
	m.renderer = renderer

	m.refreshThread()
	m.refreshGraph()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		m.input.Reset()
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			return m.runCommand(strings.TrimSpace(text))
		}
		m.svc.Conversation.SendText(text)
		return m, nil

	case key.Matches(msg, m.keys.Voice):
		return m.toggleVoice()

	case key.Matches(msg, m.keys.Graph):
		return m, fetchGraph(m.ctx, m.svc.Graph)

	case key.Matches(msg, m.keys.CloseGraph):
		return m.closeGraph()

	case key.Matches(msg, m.keys.New):
		return m.newConversation()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		if m.graphVisible {
			m.graph, cmd = m.graph.Update(msg)
		} else {
			m.thread, cmd = m.thread.Update(msg)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) toggleVoice() (tea.Model, tea.Cmd) {
	state, accepted := m.svc.Capture.Toggle(m.ctx)
	if accepted {
		m.captureState = state
	}
	return m, nil
}

func (m Model) closeGraph() (tea.Model, tea.Cmd) {
	m.svc.Graph.Close()
	m.graphVisible = false
	return m, nil
}

func (m Model) newConversation() (tea.Model, tea.Cmd) {
	if err := m.svc.Conversation.Reset(); err != nil {
		if errors.Is(err, domain.ErrBusy) {
			m.svc.Notices.Notify(entities.NoticePreconditionUnmet, entities.ChannelChat, busyResetMessage)
		}
		return m, nil
	}
	m.svc.Graph.Close()
	m.graphVisible = false
	return m, nil
}

// refreshThread re-renders the conversation and keeps the newest message
// in view
func (m *Model) refreshThread() {
	if !m.ready {
		return
	}
	m.thread.SetContent(m.renderThread())
	m.thread.GotoBottom()
}

func (m *Model) refreshGraph() {
	if !m.ready {
		return
	}
	m.graph.SetContent(m.renderGraph())
	m.graph.GotoTop()
}

// Quitting reports whether the user asked to leave
func (m Model) Quitting() bool {
	return m.quitting
}
