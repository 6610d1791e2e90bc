package utils

import (
	"strings"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWTManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	token, err := m.Generate("u1", "a@example.com", "admin")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	m, _ := NewJWTManager("secret", time.Minute)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	token, err := m.Generate("u1", "a@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := m.Validate(token); err == nil {
		t.Fatal("expected expired token to fail")
	}

	other, _ := NewJWTManager("other-secret", time.Hour)
	fresh, _ := other.Generate("u1", "a@example.com", "user")
	m.now = time.Now
	if _, err := m.Validate(fresh); err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIsValidInterval(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"Hour", true},
		{"Day", true},
		{"Month", true},
		{"hour", false},
		{"Second", false},
		{"", false},
	} {
		if got := IsValidInterval(tc.in); got != tc.want {
			t.Fatalf("IsValidInterval(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
