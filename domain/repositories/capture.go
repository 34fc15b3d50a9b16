package repositories

import "context"

// AudioCapture is a microphone-like device. Open blocks until access is
// granted or refused; a refusal wraps domain.ErrPermissionDenied. ctx bounds
// the acquisition only: a granted stream lives until Stop.
type AudioCapture interface {
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream is a granted capture handle.
//
// Chunks delivers data-available events in production order and is closed
// once the device has flushed its last chunk, either after Stop or when the
// device ends by itself.
type AudioStream interface {
	Chunks() <-chan []byte
	// Stop asks the device to stop recording. It is safe to call more than
	// once.
	Stop() error
}
