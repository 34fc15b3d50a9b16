package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
)

// runCommand handles a slash command typed into the input
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	m.logger.Debug("Command", zap.String("name", name))

	switch strings.ToLower(name) {
	case "voice", "mic":
		return m.toggleVoice()

	case "ocr", "scan":
		if arg == "" {
			m.svc.Notices.Notify(entities.NoticePreconditionUnmet, entities.ChannelImage, "Usage: /ocr <path to image>")
			return m, nil
		}
		return m, submitDocument(m.ctx, m.svc.Gateway, arg)

	case "graph":
		return m, fetchGraph(m.ctx, m.svc.Graph)

	case "close":
		return m.closeGraph()

	case "new":
		return m.newConversation()

	case "help":
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case "quit", "exit":
		m.quitting = true
		return m, tea.Quit
	}

	m.svc.Notices.Notify(entities.NoticePreconditionUnmet, entities.ChannelChat,
		fmt.Sprintf("Unknown command /%s. Try /help.", name))
	return m, nil
}
