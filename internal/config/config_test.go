package config

import (
	"bytes"
	"testing"
)

func TestResolveSigningKeyPrefersAdminSecret(t *testing.T) {
	key, err := ResolveSigningKey("admin-secret", "root-secret")
	if err != nil {
		t.Fatalf("ResolveSigningKey: %v", err)
	}
	if string(key) != "admin-secret" {
		t.Fatalf("expected verbatim admin secret, got %q", key)
	}
}

func TestResolveSigningKeyDerivesFromRoot(t *testing.T) {
	derived, err := ResolveSigningKey("", "root-secret")
	if err != nil {
		t.Fatalf("ResolveSigningKey: %v", err)
	}
	if len(derived) != 32 {
		t.Fatalf("expected 32-byte derived key, got %d bytes", len(derived))
	}
	if bytes.Equal(derived, []byte("root-secret")) {
		t.Fatal("derived key must differ from the shared root secret")
	}

	again, err := ResolveSigningKey("", "root-secret")
	if err != nil {
		t.Fatalf("ResolveSigningKey: %v", err)
	}
	if !bytes.Equal(derived, again) {
		t.Fatal("derivation must be deterministic")
	}

	other, err := ResolveSigningKey("", "another-root")
	if err != nil {
		t.Fatalf("ResolveSigningKey: %v", err)
	}
	if bytes.Equal(derived, other) {
		t.Fatal("different roots must derive different keys")
	}
}

func TestResolveSigningKeyRequiresASecret(t *testing.T) {
	if _, err := ResolveSigningKey("", ""); err == nil {
		t.Fatal("expected error when no secret is configured")
	}
	if _, err := ResolveSigningKey("   ", " "); err == nil {
		t.Fatal("expected error for blank secrets")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KASSABOOK_SECRET_KEY", "root")
	t.Setenv("KASSABOOK_ADMIN_SECRET_KEY", "")
	t.Setenv("KASSABOOK_ADMIN_ACCESS_TTL_MINUTES", "")
	t.Setenv("KASSABOOK_ADMIN_LOCKOUT_THRESHOLD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL != defaultAccessTTL {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != defaultRefreshTTL {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTTL)
	}
	if cfg.LockoutThreshold != defaultLockoutAttempts {
		t.Fatalf("unexpected lockout threshold: %d", cfg.LockoutThreshold)
	}
	if !cfg.PasswordComplexity {
		t.Fatal("complexity should default to enabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KASSABOOK_SECRET_KEY", "root")
	t.Setenv("KASSABOOK_ADMIN_ACCESS_TTL_MINUTES", "30")
	t.Setenv("KASSABOOK_ADMIN_LOCKOUT_THRESHOLD", "3")
	t.Setenv("KASSABOOK_ADMIN_PASSWORD_COMPLEXITY_OFF", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL.Minutes() != 30 {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTTL)
	}
	if cfg.LockoutThreshold != 3 {
		t.Fatalf("unexpected lockout threshold: %d", cfg.LockoutThreshold)
	}
	if cfg.PasswordComplexity {
		t.Fatal("complexity should be disabled")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("KASSABOOK_SECRET_KEY", "root")
	t.Setenv("KASSABOOK_ADMIN_ACCESS_TTL_MINUTES", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric ttl")
	}

	t.Setenv("KASSABOOK_ADMIN_ACCESS_TTL_MINUTES", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
