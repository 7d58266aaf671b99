package config

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables understood by the admin service.
const (
	envRootSecret       = "KASSABOOK_SECRET_KEY"
	envAdminSecret      = "KASSABOOK_ADMIN_SECRET_KEY"
	envPGDSN            = "KASSABOOK_PG_DSN"
	envRedisAddr        = "KASSABOOK_REDIS_ADDR"
	envRedisPassword    = "KASSABOOK_REDIS_PASSWORD"
	envListenAddr       = "KASSABOOK_ADMIN_LISTEN_ADDR"
	envAccessTTL        = "KASSABOOK_ADMIN_ACCESS_TTL_MINUTES"
	envRefreshTTL       = "KASSABOOK_ADMIN_REFRESH_TTL_HOURS"
	envLockoutThreshold = "KASSABOOK_ADMIN_LOCKOUT_THRESHOLD"
	envLockoutMinutes   = "KASSABOOK_ADMIN_LOCKOUT_MINUTES"
	envComplexityOff    = "KASSABOOK_ADMIN_PASSWORD_COMPLEXITY_OFF"
)

// signingKeyLabel separates the derived admin signing key from any verifier
// that holds the shared root secret directly.
const signingKeyLabel = "kassabook-admin-tokens"

const (
	defaultListenAddr      = ":8090"
	defaultAccessTTL       = 120 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultLockoutAttempts = 5
	defaultLockoutWindow   = 15 * time.Minute
)

var errMissingSecret = errors.New("config: no signing secret configured")

// Config holds everything the admin service reads from the environment.
// It is resolved once at process start; the signing key in particular is
// computed here and injected, never re-derived per call.
type Config struct {
	ListenAddr string
	PGDSN      string

	RedisAddr     string
	RedisPassword string

	SigningKey []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	LockoutThreshold int
	LockoutWindow    time.Duration

	PasswordComplexity bool
}

// Load reads configuration from the environment and resolves the admin
// signing key. A dedicated admin secret is used verbatim; otherwise the key
// is derived from the shared root secret with a fixed subsystem label so the
// two verifiers can never accept each other's tokens.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         firstNonEmpty(os.Getenv(envListenAddr), defaultListenAddr),
		PGDSN:              strings.TrimSpace(os.Getenv(envPGDSN)),
		RedisAddr:          strings.TrimSpace(os.Getenv(envRedisAddr)),
		RedisPassword:      os.Getenv(envRedisPassword),
		AccessTTL:          defaultAccessTTL,
		RefreshTTL:         defaultRefreshTTL,
		LockoutThreshold:   defaultLockoutAttempts,
		LockoutWindow:      defaultLockoutWindow,
		PasswordComplexity: !boolFromEnv(envComplexityOff),
	}

	key, err := ResolveSigningKey(os.Getenv(envAdminSecret), os.Getenv(envRootSecret))
	if err != nil {
		return Config{}, err
	}
	cfg.SigningKey = key

	if v, ok, err := intFromEnv(envAccessTTL); err != nil {
		return Config{}, err
	} else if ok {
		cfg.AccessTTL = time.Duration(v) * time.Minute
	}
	if v, ok, err := intFromEnv(envRefreshTTL); err != nil {
		return Config{}, err
	} else if ok {
		cfg.RefreshTTL = time.Duration(v) * time.Hour
	}
	if v, ok, err := intFromEnv(envLockoutThreshold); err != nil {
		return Config{}, err
	} else if ok {
		cfg.LockoutThreshold = v
	}
	if v, ok, err := intFromEnv(envLockoutMinutes); err != nil {
		return Config{}, err
	} else if ok {
		cfg.LockoutWindow = time.Duration(v) * time.Minute
	}

	return cfg, nil
}

// ResolveSigningKey returns the HS256 key for admin tokens. adminSecret wins
// when set; otherwise the key is HMAC-SHA256(rootSecret, label).
func ResolveSigningKey(adminSecret, rootSecret string) ([]byte, error) {
	adminSecret = strings.TrimSpace(adminSecret)
	if adminSecret != "" {
		return []byte(adminSecret), nil
	}
	rootSecret = strings.TrimSpace(rootSecret)
	if rootSecret == "" {
		return nil, errMissingSecret
	}
	mac := hmac.New(sha256.New, []byte(rootSecret))
	mac.Write([]byte(signingKeyLabel))
	return mac.Sum(nil), nil
}

func intFromEnv(name string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %w", name, err)
	}
	if v <= 0 {
		return 0, false, fmt.Errorf("config: %s must be positive", name)
	}
	return v, true, nil
}

func boolFromEnv(name string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
