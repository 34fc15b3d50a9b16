package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        speechpb.RecognitionConfig_AudioEncoding
		wantErr     bool
	}{
		{"audio/webm", "voice.webm", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"audio/wav", "x", speechpb.RecognitionConfig_LINEAR16, false},
		{"audio/ogg; codecs=opus", "", speechpb.RecognitionConfig_OGG_OPUS, false},
		{"application/octet-stream", "note.flac", speechpb.RecognitionConfig_FLAC, false},
		{"", "REC.WAV", speechpb.RecognitionConfig_LINEAR16, false},
		{"video/mp4", "clip.mp4", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType+"|"+tt.filename, func(t *testing.T) {
			got, err := encodingFor(tt.contentType, tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("encodingFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("encodingFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateGoogleConfig(t *testing.T) {
	if err := ValidateGoogleConfig(GoogleConfig{}); err != nil {
		t.Errorf("Empty config should be valid: %v", err)
	}
	if err := ValidateGoogleConfig(GoogleConfig{SampleRate: 96000}); err == nil {
		t.Error("Sample rate above 48000 should be rejected")
	}
}
