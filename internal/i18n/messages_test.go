package i18n

import (
	"errors"
	"strings"
	"testing"

	"faceswap/internal/domain"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "id"},
		{"id-ID,en;q=0.8", "id"},
		{"en-US,en;q=0.9", "en"},
		{"fr-FR", "en"},
		{"", "en"},
		{"not a locale!!", "en"},
	}
	for _, tt := range tests {
		if got := Code(tt.in); got != tt.want {
			t.Fatalf("Code(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUserMessageLocalizesRejections(t *testing.T) {
	en := UserMessage("en", domain.CodeContentRejected, domain.RejectionMinor)
	id := UserMessage("id", domain.CodeContentRejected, domain.RejectionMinor)
	if !strings.Contains(en, "minor") {
		t.Fatalf("en = %q", en)
	}
	if !strings.Contains(id, "di bawah umur") {
		t.Fatalf("id = %q", id)
	}
	if got := UserMessage("en", domain.CodeContentRejected, ""); !strings.Contains(got, "safety filter") {
		t.Fatalf("default reason = %q", got)
	}
}

func TestUserMessageUnknownCodeFallsBackToInternal(t *testing.T) {
	if got, want := UserMessage("en", "weird", ""), UserMessage("en", domain.CodeInternal, ""); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestErrorMessage(t *testing.T) {
	got := ErrorMessage("id", &domain.InsufficientCreditsError{Required: 5, Available: 2})
	if !strings.Contains(got, "5") || !strings.Contains(got, "2") || !strings.Contains(got, "Kredit") {
		t.Fatalf("insufficient = %q", got)
	}
	if got := ErrorMessage("en", domain.NewContentRejection("veo", "celebrity likeness")); !strings.Contains(got, "public figure") {
		t.Fatalf("rejection = %q", got)
	}
	if got := ErrorMessage("en", errors.New("boom")); got != "Something went wrong." {
		t.Fatalf("internal = %q", got)
	}
}
