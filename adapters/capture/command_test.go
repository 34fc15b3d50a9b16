package capture

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func collect(t *testing.T, stream repositories.AudioStream) [][]byte {
	t.Helper()
	var chunks [][]byte
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestCommandCaptureStreamsStdoutInChunks(t *testing.T) {
	requireBinary(t, "cat")

	path := filepath.Join(t.TempDir(), "voice.raw")
	payload := make([]byte, 10)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	device, err := NewCommandCapture(CommandConfig{Command: "cat " + path, ChunkSize: 4}, zaptest.NewLogger(t))
	require.NoError(t, err)

	stream, err := device.Open(context.Background())
	require.NoError(t, err)

	chunks := collect(t, stream)
	require.Len(t, chunks, 3)
	assert.Equal(t, payload[:4], chunks[0])
	assert.Equal(t, payload[8:], chunks[2])
	assert.NoError(t, stream.Stop(), "stopping an ended recorder is harmless")
}

func TestCommandCaptureStopInterruptsRecorder(t *testing.T) {
	requireBinary(t, "yes")

	device, err := NewCommandCapture(CommandConfig{Command: "yes", ChunkSize: 64}, zaptest.NewLogger(t))
	require.NoError(t, err)

	stream, err := device.Open(context.Background())
	require.NoError(t, err)

	<-stream.Chunks()
	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())

	collect(t, stream)
}

func TestCommandCaptureMissingBinaryIsDenied(t *testing.T) {
	device, err := NewCommandCapture(CommandConfig{Command: "medchat-no-such-recorder"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = device.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCommandCaptureSilentExitIsDenied(t *testing.T) {
	requireBinary(t, "false")

	device, err := NewCommandCapture(CommandConfig{Command: "false"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = device.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCommandCaptureCancelledWhileWaiting(t *testing.T) {
	requireBinary(t, "sleep")

	device, err := NewCommandCapture(CommandConfig{Command: "sleep 10"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = device.Open(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValidateCommandConfig(t *testing.T) {
	assert.Error(t, ValidateCommandConfig(CommandConfig{Command: "  "}))
	assert.Error(t, ValidateCommandConfig(CommandConfig{Command: "arecord", ChunkSize: -1}))
	assert.NoError(t, ValidateCommandConfig(CommandConfig{Command: "arecord -q -f cd -t wav -"}))
}

func TestScriptedCaptureEndsByItself(t *testing.T) {
	device := NewScriptedCapture([]byte("abcdefg"), 3, 0, zaptest.NewLogger(t))

	stream, err := device.Open(context.Background())
	require.NoError(t, err)

	chunks := collect(t, stream)
	require.Len(t, chunks, 3)
	assert.Equal(t, "abc", string(chunks[0]))
	assert.Equal(t, "g", string(chunks[2]))
}

func TestScriptedCaptureStop(t *testing.T) {
	device := NewScriptedCapture(make([]byte, 1024), 1, time.Millisecond, zaptest.NewLogger(t))

	stream, err := device.Open(context.Background())
	require.NoError(t, err)

	<-stream.Chunks()
	require.NoError(t, stream.Stop())
	assert.Less(t, len(collect(t, stream)), 1023)
}

func TestFileCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.webm")
	require.NoError(t, os.WriteFile(path, []byte("recorded"), 0o600))

	device, err := NewFileCapture(path, 4, zaptest.NewLogger(t))
	require.NoError(t, err)

	stream, err := device.Open(context.Background())
	require.NoError(t, err)
	assert.Len(t, collect(t, stream), 2)

	_, err = NewFileCapture(filepath.Join(t.TempDir(), "missing"), 4, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.ErrorIs(t, err, ErrNoDevice)
}
