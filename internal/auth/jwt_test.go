package auth

import (
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestGenerateAndValidateUserToken(t *testing.T) {
	token, err := GenerateUserToken(42, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateUserToken error: %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if claims.UserID != 42 || claims.Role != RoleUser {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateUserToken(1, testSecret, time.Hour)

	if _, err := ValidateToken(token, []byte("other")); err == nil {
		t.Error("Expected error for wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	token, _ := GenerateUserToken(1, testSecret, time.Nanosecond)
	time.Sleep(1100 * time.Millisecond)

	if _, err := ValidateToken(token, testSecret); err == nil {
		t.Error("Expected error for expired token")
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	if _, err := GenerateUserToken(0, testSecret, time.Hour); err == nil {
		t.Error("Expected error for zero user id")
	}
	if _, err := GenerateUserToken(1, nil, time.Hour); err == nil {
		t.Error("Expected error for missing secret")
	}
	if _, err := GenerateDeviceToken("", testSecret, time.Hour); err == nil {
		t.Error("Expected error for missing device id")
	}
}

func TestDeviceToken(t *testing.T) {
	token, err := GenerateDeviceToken("mic-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateDeviceToken error: %v", err)
	}
	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if claims.DeviceID != "mic-1" || claims.Role != RoleDevice {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestUserIDFromToken(t *testing.T) {
	token, _ := GenerateUserToken(7, testSecret, time.Hour)

	id, err := UserIDFromToken(token)
	if err != nil || id != 7 {
		t.Errorf("Expected user id 7, got %d (%v)", id, err)
	}

	deviceToken, _ := GenerateDeviceToken("mic-1", testSecret, time.Hour)
	if _, err := UserIDFromToken(deviceToken); err == nil {
		t.Error("Expected error for token without user id")
	}

	if _, err := UserIDFromToken("not-a-token"); err == nil {
		t.Error("Expected error for malformed token")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
