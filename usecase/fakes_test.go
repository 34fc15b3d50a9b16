package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

type askCall struct {
	userID int
	text   string
	convID string
}

// fakeChatBackend answers with queued replies. When gate is set every call
// waits for a release before answering.
type fakeChatBackend struct {
	mu       sync.Mutex
	calls    []askCall
	replies  []domain.ChatReply
	errs     []error
	gate     chan struct{}
	inFlight int
	maxSeen  int
}

func (f *fakeChatBackend) Ask(ctx context.Context, userID int, text, convID string) (domain.ChatReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, askCall{userID: userID, text: text, convID: convID})
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	idx := len(f.calls) - 1
	gate := f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.ChatReply{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.errs) && f.errs[idx] != nil {
		return domain.ChatReply{}, f.errs[idx]
	}
	if idx < len(f.replies) {
		return f.replies[idx], nil
	}
	return domain.ChatReply{Answer: "ok"}, nil
}

func (f *fakeChatBackend) Calls() []askCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]askCall(nil), f.calls...)
}

func (f *fakeChatBackend) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

type notice struct {
	kind    entities.NoticeKind
	channel entities.NoticeChannel
	text    string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(kind entities.NoticeKind, channel entities.NoticeChannel, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{kind: kind, channel: channel, text: text})
}

func (n *recordingNotifier) Notices() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type fakeExtractor struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []entities.ExtractionRequest
}

func (f *fakeExtractor) record(req entities.ExtractionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.text, f.err
}

func (f *fakeExtractor) TranscribeAudio(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	return f.record(req)
}

func (f *fakeExtractor) ExtractText(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	return f.record(req)
}

func (f *fakeExtractor) Calls() []entities.ExtractionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.ExtractionRequest(nil), f.calls...)
}

type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) SendText(text string) *Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return &Turn{text: text, done: make(chan struct{})}
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// fakeDevice hands out fakeStreams. When grant is set Open waits for it.
type fakeDevice struct {
	mu      sync.Mutex
	err     error
	grant   chan struct{}
	opened  int
	streams []*fakeStream
}

var errDenied = errors.New("denied by user")

func (d *fakeDevice) Open(ctx context.Context) (repositories.AudioStream, error) {
	d.mu.Lock()
	d.opened++
	grant, err := d.grant, d.err
	d.mu.Unlock()

	if grant != nil {
		select {
		case <-grant:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	s := &fakeStream{chunks: make(chan []byte, 16)}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) Stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.streams) {
		return nil
	}
	return d.streams[i]
}

func (d *fakeDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

type fakeStream struct {
	chunks  chan []byte
	once    sync.Once
	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	s.once.Do(func() { close(s.chunks) })
	return nil
}

func (s *fakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped > 0
}

// End simulates the device ending the stream by itself
func (s *fakeStream) End() {
	s.once.Do(func() { close(s.chunks) })
}

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []entities.ExtractionRequest
	err  error
}

func (s *recordingSubmitter) Submit(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return "", s.err
}

func (s *recordingSubmitter) Requests() []entities.ExtractionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.ExtractionRequest(nil), s.reqs...)
}

type fakeGraphSource struct {
	mu    sync.Mutex
	graph *entities.ReasoningGraph
	err   error
	calls []string
}

func (f *fakeGraphSource) FetchGraph(ctx context.Context, convID string) (*entities.ReasoningGraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, convID)
	return f.graph, f.err
}

type staticContinuity string

func (s staticContinuity) ContinuityID() string { return string(s) }
