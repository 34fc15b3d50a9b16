package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/usecase"
)

// threadMsg carries a conversation change
type threadMsg usecase.ThreadEvent

// captureMsg carries a capture state transition
type captureMsg usecase.CaptureEvent

// noticeMsg carries a newly raised notice
type noticeMsg entities.Notice

// noticeTickMsg asks the model to drop expired notices
type noticeTickMsg struct{}

// graphDoneMsg reports the end of a graph fetch
type graphDoneMsg struct{ err error }

// extractionDoneMsg reports the end of a document upload
type extractionDoneMsg struct {
	text string
	err  error
}

// Each waiter blocks on one event channel and is re-issued after every
// delivery. A closed channel ends the waiter.

func waitThread(ch <-chan usecase.ThreadEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return threadMsg(ev)
	}
}

func waitCapture(ch <-chan usecase.CaptureEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return captureMsg(ev)
	}
}

func waitNotice(ch <-chan entities.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func noticeTick(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return noticeTickMsg{} })
}

func fetchGraph(ctx context.Context, viewer *usecase.GraphViewer) tea.Cmd {
	return func() tea.Msg {
		return graphDoneMsg{err: viewer.Fetch(ctx)}
	}
}

func submitDocument(ctx context.Context, gateway *usecase.ExtractionGateway, path string) tea.Cmd {
	return func() tea.Msg {
		text, err := gateway.SubmitFile(ctx, entities.ExtractionImage, path)
		return extractionDoneMsg{text: text, err: err}
	}
}
