package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Suraj127-git/medchat/domain/entities"
)

// Lines used around the scrolling body: header, status, notice, input, help
// and one separator
const chromeHeight = 6

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	botLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	recordingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	noticeStyle    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
	graphTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// View renders the page
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	if m.graphVisible {
		b.WriteString(m.graph.View())
	} else {
		b.WriteString(m.thread.View())
	}
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(m.noticeView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) headerView() string {
	conv := "new conversation"
	if m.snapshot.ContinuityID != "" {
		conv = "conversation " + m.snapshot.ContinuityID
	}
	left := titleStyle.Render("medchat") + dimStyle.Render(" · "+conv)

	right := captureLabel(m.captureState)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func captureLabel(state entities.CaptureState) string {
	switch state {
	case entities.CaptureRequesting:
		return dimStyle.Render("requesting microphone...")
	case entities.CaptureRecording:
		return recordingStyle.Render("● REC")
	case entities.CaptureFinalizing:
		return dimStyle.Render("processing voice...")
	case entities.CaptureError:
		return recordingStyle.Render("microphone unavailable")
	default:
		return dimStyle.Render("ctrl+r to speak")
	}
}

func (m Model) statusView() string {
	if m.snapshot.Pending {
		return m.spinner.View() + " Thinking..."
	}
	return ""
}

func (m Model) noticeView() string {
	if len(m.notices) == 0 {
		return ""
	}
	// Newest notice wins the banner
	n := m.notices[len(m.notices)-1]
	text := n.Text
	if extra := len(m.notices) - 1; extra > 0 {
		text = fmt.Sprintf("%s (+%d)", text, extra)
	}
	return noticeStyle.Render(text)
}

func (m Model) renderThread() string {
	if len(m.snapshot.Messages) == 0 {
		return dimStyle.Render("Type a question, press ctrl+r to speak, or /ocr <file> to scan a document.")
	}

	var b strings.Builder
	for i, msg := range m.snapshot.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Sender {
		case entities.SenderUser:
			label := userLabelStyle.Render("You")
			b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, label))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(m.width).Align(lipgloss.Right).Render(msg.Content))
		default:
			b.WriteString(botLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Content))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) renderGraph() string {
	graph := m.svc.Graph.Graph()
	if graph == nil || graph.Empty() {
		return dimStyle.Render("No graph loaded.")
	}

	title := graphTitleStyle.Render("Reasoning graph · conversation " + m.svc.Graph.ConvID())
	return title + dimStyle.Render("  (esc to close)") + "\n\n" + graph.Pretty()
}
