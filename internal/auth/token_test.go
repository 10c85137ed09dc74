package auth

import (
	"errors"
	"testing"
	"time"

	"faceswap/internal/domain"
)

func newTestSigner(now *time.Time) *Signer {
	s := NewSigner("secret", "faceswap-ledger", time.Hour)
	s.now = func() time.Time { return *now }
	return s
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)
	token, exp, err := s.Issue("user-1", "id")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("exp = %v", exp)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Locale != "id" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpiredAndTampered(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)
	token, _, _ := s.Issue("user-1", "")

	now = now.Add(2 * time.Hour)
	if _, err := s.Verify(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}

	other := NewSigner("different", "faceswap-ledger", time.Hour)
	other.now = s.now
	forged, _, _ := other.Issue("user-1", "")
	if _, err := s.Verify(forged); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRefreshWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)
	token, _, _ := s.Issue("user-1", "en")

	now = now.Add(90 * time.Minute)
	fresh, exp, err := s.Refresh(token, time.Hour)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("refreshed exp %v not after now %v", exp, now)
	}
	if claims, err := s.Verify(fresh); err != nil || claims.Subject != "user-1" {
		t.Fatalf("verify refreshed: %+v %v", claims, err)
	}

	now = now.Add(2 * time.Hour)
	if _, _, err := s.Refresh(token, time.Hour); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized past the grace window", err)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("got %q %v", tok, ok)
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatal("basic scheme accepted")
	}
	if _, ok := BearerToken("bearer "); ok {
		t.Fatal("empty token accepted")
	}
}
