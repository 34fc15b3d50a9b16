package mock

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Suraj127-git/medchat/domain/entities"
)

func TestChatResponder(t *testing.T) {
	responder := NewChatResponder(zaptest.NewLogger(t))

	tests := []struct {
		name     string
		question string
		contains string
		sources  bool
	}{
		{"diabetes", "How is Diabetes treated?", "metformin", true},
		{"fever", "I have a fever", "paracetamol", true},
		{"unknown", "my elbow itches", "could not find guidance", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, sources := responder.Respond(tt.question)
			if !strings.Contains(answer, tt.contains) {
				t.Errorf("Expected answer to contain %q, got %q", tt.contains, answer)
			}
			if (len(sources) > 0) != tt.sources {
				t.Errorf("Unexpected sources %v", sources)
			}
		})
	}
}

func TestChatBackendIssuesConversationID(t *testing.T) {
	backend := NewChatBackend(zaptest.NewLogger(t))

	first, err := backend.Ask(context.Background(), 1, "hello", "")
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if first.ConvID == "" {
		t.Fatal("Expected a conversation id on the first turn")
	}

	second, _ := backend.Ask(context.Background(), 1, "again", first.ConvID)
	if second.ConvID != first.ConvID {
		t.Errorf("Expected conversation id %s to be kept, got %s", first.ConvID, second.ConvID)
	}

	calls := backend.Calls()
	if len(calls) != 2 || calls[0].ConvID != "" || calls[1].ConvID != first.ConvID {
		t.Errorf("Unexpected calls %+v", calls)
	}
}

func TestSpeechToText(t *testing.T) {
	stt := NewSpeechToText(zaptest.NewLogger(t))

	text, err := stt.TranscribeAudio(context.Background(), entities.ExtractionRequest{Payload: make([]byte, 100)})
	if err != nil || text != "Hello doctor." {
		t.Errorf("Unexpected transcription %q, %v", text, err)
	}

	if stt.Transcribe(nil) != "" {
		t.Error("Empty audio should transcribe to nothing")
	}
}

func TestImageToTextEchoesPlainText(t *testing.T) {
	ocr := NewImageToText(zaptest.NewLogger(t))

	text, _ := ocr.ExtractText(context.Background(), entities.ExtractionRequest{Filename: "note.txt", Payload: []byte(" take two tablets \n")})
	if text != "take two tablets" {
		t.Errorf("Expected echoed text, got %q", text)
	}

	text, _ = ocr.ExtractText(context.Background(), entities.ExtractionRequest{Filename: "scan.png", Payload: []byte{0x89, 'P', 'N', 'G', 0}})
	if !strings.HasPrefix(text, "Prescription") {
		t.Errorf("Expected canned prescription, got %q", text)
	}
}
