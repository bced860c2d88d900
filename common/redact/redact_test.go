package redact_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/inboxai/inboxd/common/redact"
)

func TestString_ReplacesSensitiveValues(t *testing.T) {
	got := redact.String("Bearer sk-abc123 failed", "sk-abc123")
	if strings.Contains(got, "sk-abc123") {
		t.Fatalf("sensitive value leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected placeholder in %q", got)
	}
}

func TestString_SkipsShortValues(t *testing.T) {
	// Values under 4 chars would redact common substrings; they are ignored.
	got := redact.String("a is for apple", "a")
	if got != "a is for apple" {
		t.Fatalf("short value should not be redacted, got %q", got)
	}
}

func TestError(t *testing.T) {
	err := errors.New("token refresh failed: refresh-token-xyz rejected")
	got := redact.Error(err, "refresh-token-xyz")
	if strings.Contains(got, "refresh-token-xyz") {
		t.Fatalf("sensitive value leaked: %q", got)
	}
	if redact.Error(nil) != "" {
		t.Fatal("nil error should redact to empty string")
	}
}
