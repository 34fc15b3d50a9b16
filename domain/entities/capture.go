package entities

import "bytes"

// CaptureState is a state of the media capture state machine
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureRecording  CaptureState = "recording"
	CaptureFinalizing CaptureState = "finalizing"
	CaptureError      CaptureState = "error"
)

// AcceptsToggle reports whether a start/stop gesture is honoured in this state
func (s CaptureState) AcceptsToggle() bool {
	return s == CaptureIdle || s == CaptureRecording
}

// CaptureSession holds the audio chunks produced since the last start
type CaptureSession struct {
	chunks [][]byte
	size   int
}

// NewCaptureSession creates an empty capture session
func NewCaptureSession() *CaptureSession {
	return &CaptureSession{}
}

// Append stores a copy of a non-empty chunk. Zero-length chunks are ignored.
func (s *CaptureSession) Append(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.chunks = append(s.chunks, c)
	s.size += len(c)
	return true
}

// ChunkCount returns the number of buffered chunks
func (s *CaptureSession) ChunkCount() int {
	return len(s.chunks)
}

// Size returns the number of buffered bytes
func (s *CaptureSession) Size() int {
	return s.size
}

// Drain concatenates all buffered chunks in order and clears the buffer
func (s *CaptureSession) Drain() []byte {
	var buf bytes.Buffer
	buf.Grow(s.size)
	for _, c := range s.chunks {
		buf.Write(c)
	}
	s.Reset()
	return buf.Bytes()
}

// Reset discards all buffered chunks
func (s *CaptureSession) Reset() {
	s.chunks = nil
	s.size = 0
}
