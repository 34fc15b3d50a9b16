package medapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, config Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config.BaseURL = server.URL
	client, err := NewClient(config, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"query", Config{BaseURL: "https://api.example.com", Variant: VariantQuery}, false},
		{"legacy", Config{Variant: VariantLegacy}, false},
		{"bad variant", Config{Variant: "v3"}, true},
		{"bad scheme", Config{BaseURL: "ftp://example.com"}, true},
		{"negative timeout", Config{Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAskQueryVariant(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"answer":"Insulin therapy","conv_id":"abc123"}`))
	}, Config{Token: "secret"})

	reply, err := client.Ask(context.Background(), 7, "What is the treatment for diabetes?", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChatReply{Answer: "Insulin therapy", ConvID: "abc123"}, reply)

	assert.Equal(t, float64(7), got["user_id"])
	assert.Equal(t, "What is the treatment for diabetes?", got["text"])
	_, hasConv := got["conv_id"]
	assert.False(t, hasConv, "conv_id must be omitted when absent")
}

func TestAskReturnsConversationIDInIssuedType(t *testing.T) {
	tests := []struct {
		name   string
		issued string
		convID string
		want   interface{}
	}{
		{"string", `"abc123"`, "abc123", "abc123"},
		{"leading zeros", `"007"`, "007", "007"},
		{"digit string", `"123"`, "123", "123"},
		{"signed string", `"+5"`, "+5", "+5"},
		{"number", `12`, "12", float64(12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bodies []map[string]interface{}
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var got map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				bodies = append(bodies, got)
				w.Write([]byte(`{"answer":"ok","conv_id":` + tt.issued + `}`))
			}, Config{})

			first, err := client.Ask(context.Background(), 1, "question", "")
			require.NoError(t, err)
			assert.Equal(t, tt.convID, first.ConvID)

			second, err := client.Ask(context.Background(), 1, "follow up", first.ConvID)
			require.NoError(t, err)
			assert.Equal(t, tt.convID, second.ConvID)

			require.Len(t, bodies, 2)
			assert.Equal(t, tt.want, bodies[1]["conv_id"])
		})
	}
}

func TestAskSendsUnseenConversationIDAsString(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"answer":"ok","conv_id":12}`))
	}, Config{})

	reply, err := client.Ask(context.Background(), 1, "follow up", "12")
	require.NoError(t, err)
	assert.Equal(t, "12", reply.ConvID, "numeric conv_id is accepted")
	assert.Equal(t, "12", got["conv_id"], "a resumed id goes out as a string")
}

func TestAskLegacyVariant(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"Drink water"}`))
	}, Config{Variant: VariantLegacy})

	reply, err := client.Ask(context.Background(), 1, "I feel dizzy", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Drink water", reply.Answer)
	assert.Empty(t, reply.ConvID)
	assert.Equal(t, map[string]interface{}{"message": "I feel dizzy"}, got)
}

func TestAskErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"text required"}`))
	}, Config{})

	_, err := client.Ask(context.Background(), 1, "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "text required")
}

func TestAskStructuredErrorDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","text"],"msg":"field required"}]}`))
	}, Config{})

	_, err := client.Ask(context.Background(), 1, "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field required")
}

func TestAskInvalidBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}, Config{})

	_, err := client.Ask(context.Background(), 1, "x", "")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestAskTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Config{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := client.Ask(context.Background(), 1, "slow", "")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestTranscribeAudioUploadsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/voice", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice-bytes", string(data))
		assert.Equal(t, "voice.webm", header.Filename)
		assert.Equal(t, "audio/webm", header.Header.Get("Content-Type"))
		w.Write([]byte(`{"text":"I have a headache"}`))
	}, Config{})

	text, err := client.TranscribeAudio(context.Background(), entities.ExtractionRequest{
		Kind:        entities.ExtractionVoice,
		Payload:     []byte("voice-bytes"),
		Filename:    "voice.webm",
		ContentType: "audio/webm",
	})
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", text)
}

func TestExtractText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ocr", r.URL.Path)
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "scan.png", header.Filename)
		w.Write([]byte(`{"text":"Metformin 500 mg"}`))
	}, Config{})

	text, err := client.ExtractText(context.Background(), entities.ExtractionRequest{
		Kind:     entities.ExtractionImage,
		Payload:  []byte{1, 2, 3},
		Filename: "scan.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Metformin 500 mg", text)
}

func TestExtractTextFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{})

	_, err := client.ExtractText(context.Background(), entities.ExtractionRequest{Payload: []byte{1}, Filename: "a.png"})
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchGraph(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/graph/abc123", r.URL.Path)
		w.Write([]byte(`{"nodes":[{"id":"n1"}],"edges":[]}`))
	}, Config{})

	graph, err := client.FetchGraph(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", graph.ConvID)
	assert.JSONEq(t, `{"nodes":[{"id":"n1"}],"edges":[]}`, string(graph.Raw))
}

func TestFetchGraphNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"No graph found"}`))
	}, Config{})

	_, err := client.FetchGraph(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchGraphRequiresID(t *testing.T) {
	client, err := NewClient(Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.FetchGraph(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoContinuityID)
}
