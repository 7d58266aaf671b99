package adminauth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, exp, err := svc.IssueAccess("op-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry %v is not in the future", exp)
	}

	claims, err := svc.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != "op-1" {
		t.Fatalf("subject = %q, want op-1", claims.Subject)
	}
	if claims.Kind != TokenKindAccess {
		t.Fatalf("kind = %q, want %q", claims.Kind, TokenKindAccess)
	}
	if claims.ID == "" {
		t.Fatal("token id is empty")
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	svc, err := NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	refresh, _, err := svc.IssueRefresh("op-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := svc.ValidateAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh accepted as access token: %v", err)
	}

	access, _, err := svc.IssueAccess("op-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.ValidateRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access accepted as refresh token: %v", err)
	}
}

func TestTokenExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService([]byte("test-signing-key"),
		WithAccessTTL(time.Minute),
		WithTokenClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, exp, err := svc.IssueAccess("op-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.Equal(now.Add(time.Minute)) {
		t.Fatalf("expiry = %v, want %v", exp, now.Add(time.Minute))
	}

	now = exp.Add(-time.Second)
	if _, err := svc.ValidateAccess(token); err != nil {
		t.Fatalf("token invalid one second before expiry: %v", err)
	}

	// Expired at the exact expiry instant, not one tick later.
	now = exp
	if _, err := svc.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token still valid at expiry instant: %v", err)
	}
}

func TestTokenTamperRejected(t *testing.T) {
	svc, err := NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := svc.IssueAccess("op-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	if _, err := svc.ValidateAccess(string(tampered)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}

	other, err := NewTokenService([]byte("another-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if _, err := other.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with a different key accepted: %v", err)
	}
}

func TestTokenRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService([]byte("test-signing-key"),
		WithAccessTTL(10*time.Minute),
		WithTokenClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := svc.IssueAccess("op-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := svc.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}

	if got := svc.Remaining(claims); got != 10*time.Minute {
		t.Fatalf("Remaining = %v, want 10m", got)
	}
	now = now.Add(11 * time.Minute)
	if got := svc.Remaining(claims); got != 0 {
		t.Fatalf("Remaining after expiry = %v, want 0", got)
	}
}
