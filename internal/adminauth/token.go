package adminauth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kind discriminators. An access token is never honored as a refresh
// token and vice versa.
const (
	TokenKindAccess  = "admin_access"
	TokenKindRefresh = "admin_refresh"
)

const (
	defaultAccessTTL  = 120 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the signed payload of admin tokens. Only the fields below go on
// the wire; authorization data stays out so it cannot go stale before expiry.
type Claims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates admin access and refresh tokens with
// HS256. Validation is stateless; the unique jti exists so a revocation list
// can be consulted without changing the claim format.
type TokenService struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService around an already-resolved
// signing key.
func NewTokenService(key []byte, opts ...TokenOption) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("adminauth: signing key is required")
	}
	s := &TokenService{
		key:        key,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccess signs a short-lived access token for the operator.
func (s *TokenService) IssueAccess(operatorID string) (string, time.Time, error) {
	return s.issue(operatorID, TokenKindAccess, s.accessTTL)
}

// IssueRefresh signs a longer-lived refresh token for the operator.
func (s *TokenService) IssueRefresh(operatorID string) (string, time.Time, error) {
	return s.issue(operatorID, TokenKindRefresh, s.refreshTTL)
}

func (s *TokenService) issue(operatorID, kind string, ttl time.Duration) (string, time.Time, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return "", time.Time{}, errors.New("adminauth: operator id is required")
	}

	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateAccess verifies signature, freshness, and kind of an access token.
// Every failure collapses to ErrInvalidToken.
func (s *TokenService) ValidateAccess(token string) (*Claims, error) {
	return s.validate(token, TokenKindAccess)
}

// ValidateRefresh verifies a refresh token and returns the operator id.
func (s *TokenService) ValidateRefresh(token string) (string, error) {
	claims, err := s.validate(token, TokenKindRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *TokenService) validate(token, kind string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	// Time-based checks run below against the injected clock, so jwt's own
	// claim validation is disabled.
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := s.validateClaims(claims, kind); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) validateClaims(claims *Claims, kind string) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return errors.New("token id missing")
	}
	if claims.Kind != kind {
		return errors.New("unexpected token kind")
	}
	now := s.now().UTC()
	// A token validated at exactly its expiry instant is already expired.
	if !now.Before(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// Remaining returns how long the claims stay valid from the service clock;
// used to bound revocation-list entries.
func (s *TokenService) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(s.now().UTC())
	if d < 0 {
		return 0
	}
	return d
}
