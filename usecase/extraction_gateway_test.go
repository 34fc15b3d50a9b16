package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
)

type gatewayFixture struct {
	gateway  *ExtractionGateway
	stt      *fakeExtractor
	ocr      *fakeExtractor
	sink     *recordingSink
	notifier *recordingNotifier
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		stt:      &fakeExtractor{text: "I have a headache"},
		ocr:      &fakeExtractor{text: "Metformin 500 mg"},
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
	}
	f.gateway = NewExtractionGateway(f.stt, f.ocr, f.sink, f.notifier, GatewayConfig{Timeout: time.Second}, zaptest.NewLogger(t))
	return f
}

func voiceRequest(payload string) entities.ExtractionRequest {
	return entities.ExtractionRequest{
		Kind:        entities.ExtractionVoice,
		Payload:     []byte(payload),
		Filename:    "voice.webm",
		ContentType: "audio/webm",
	}
}

func TestSubmitVoiceForwardsTranscript(t *testing.T) {
	f := newGatewayFixture(t)

	text, err := f.gateway.Submit(context.Background(), voiceRequest("audio"))
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", text)
	assert.Equal(t, []string{"I have a headache"}, f.sink.Texts())
	assert.Len(t, f.stt.Calls(), 1)
	assert.Empty(t, f.ocr.Calls())
	assert.Empty(t, f.notifier.Notices())
}

func TestSubmitImageRoutesToOCR(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.gateway.Submit(context.Background(), entities.ExtractionRequest{
		Kind:     entities.ExtractionImage,
		Payload:  []byte{0x89, 'P', 'N', 'G'},
		Filename: "scan.png",
	})
	require.NoError(t, err)
	assert.Len(t, f.ocr.Calls(), 1)
	assert.Empty(t, f.stt.Calls())
	assert.Equal(t, []string{"Metformin 500 mg"}, f.sink.Texts())
}

func TestSubmitEmptyPayloadIsNoop(t *testing.T) {
	f := newGatewayFixture(t)

	text, err := f.gateway.Submit(context.Background(), voiceRequest(""))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, f.stt.Calls(), "an empty buffer must not reach the network")
	assert.Empty(t, f.sink.Texts())
	assert.Empty(t, f.notifier.Notices())
}

func TestSubmitBlankTranscriptDoesNotForward(t *testing.T) {
	f := newGatewayFixture(t)
	f.stt.text = "   "

	text, err := f.gateway.Submit(context.Background(), voiceRequest("audio"))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, f.sink.Texts())
	assert.Empty(t, f.notifier.Notices())
}

func TestSubmitFailureRaisesOneNotice(t *testing.T) {
	tests := []struct {
		name    string
		kind    entities.ExtractionKind
		channel entities.NoticeChannel
		text    string
	}{
		{"voice", entities.ExtractionVoice, entities.ChannelVoice, "Voice processing failed."},
		{"image", entities.ExtractionImage, entities.ChannelImage, "OCR failed to process image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			f.stt.err = errors.New("status 500")
			f.ocr.err = errors.New("status 500")

			_, err := f.gateway.Submit(context.Background(), entities.ExtractionRequest{
				Kind:     tt.kind,
				Payload:  []byte("data"),
				Filename: "file",
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExtraction)
			assert.Empty(t, f.sink.Texts())

			notices := f.notifier.Notices()
			require.Len(t, notices, 1)
			assert.Equal(t, entities.NoticeNetworkFailure, notices[0].kind)
			assert.Equal(t, tt.channel, notices[0].channel)
			assert.Equal(t, tt.text, notices[0].text)
		})
	}
}

func TestSubmitRecordsPipelineRun(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.gateway.Submit(context.Background(), voiceRequest("audio"))
	require.NoError(t, err)

	var types []string
	for len(f.gateway.Runs().Events()) > 0 {
		types = append(types, (<-f.gateway.Runs().Events()).Type)
	}
	assert.Contains(t, types, "run_completed")
}

func TestSubmitFile(t *testing.T) {
	f := newGatewayFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "prescription.png")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o600))

	_, err := f.gateway.SubmitFile(context.Background(), entities.ExtractionImage, path)
	require.NoError(t, err)

	calls := f.ocr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "prescription.png", calls[0].Filename)
	assert.Equal(t, "image/png", calls[0].ContentType)
	assert.Equal(t, "image-bytes", string(calls[0].Payload))
}

func TestSubmitFileMissing(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.gateway.SubmitFile(context.Background(), entities.ExtractionImage, filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Empty(t, f.ocr.Calls())
	require.Len(t, f.notifier.Notices(), 1)
	assert.Equal(t, "OCR failed to process image", f.notifier.Notices()[0].text)
}

func TestGatewayFeedsConversation(t *testing.T) {
	backend := &fakeChatBackend{}
	svc := newTestConversation(t, backend, time.Second)
	notifier := &recordingNotifier{}
	stt := &fakeExtractor{text: "what is a normal blood pressure"}
	gateway := NewExtractionGateway(stt, nil, svc, notifier, GatewayConfig{}, zaptest.NewLogger(t))

	_, err := gateway.Submit(context.Background(), voiceRequest("audio"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(svc.Snapshot().Messages) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "what is a normal blood pressure", backend.Calls()[0].text)
}

func TestGatewayWithoutOCRFails(t *testing.T) {
	f := newGatewayFixture(t)
	gateway := NewExtractionGateway(f.stt, nil, f.sink, f.notifier, GatewayConfig{}, zaptest.NewLogger(t))

	_, err := gateway.Submit(context.Background(), entities.ExtractionRequest{Kind: entities.ExtractionImage, Payload: []byte("x"), Filename: "a.png"})
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Len(t, f.notifier.Notices(), 1)
}
