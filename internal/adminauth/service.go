// Package adminauth is the identity and access-control core of the admin
// back office: credential verification, admin token issuance, role-based
// authorization, and the login lockout state machine.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kassabook.org/internal/audit"
	"kassabook.org/internal/obs"
)

// Service exposes the operations business collaborators call: Authenticate,
// Refresh, Authorize, and operator/role management. It holds no mutable
// state beyond configuration resolved at startup.
type Service struct {
	store     Store
	tokens    *TokenService
	blacklist TokenBlacklist
	recorder  *audit.Recorder

	lockoutThreshold int
	lockoutWindow    time.Duration
	complexityOn     bool

	now func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithBlacklist wires a revocation list consulted after token validation.
func WithBlacklist(b TokenBlacklist) ServiceOption {
	return func(s *Service) {
		if b != nil {
			s.blacklist = b
		}
	}
}

// WithRecorder wires the audit recorder used for authentication events.
func WithRecorder(r *audit.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLockoutPolicy overrides the failed-login threshold and lockout window.
func WithLockoutPolicy(threshold int, window time.Duration) ServiceOption {
	return func(s *Service) {
		if threshold > 0 {
			s.lockoutThreshold = threshold
		}
		if window > 0 {
			s.lockoutWindow = window
		}
	}
}

// WithPasswordComplexity toggles complexity enforcement on password writes.
func WithPasswordComplexity(on bool) ServiceOption {
	return func(s *Service) { s.complexityOn = on }
}

// WithClock overrides the time source (for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

const (
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 15 * time.Minute
)

// NewService constructs the admin identity service.
func NewService(store Store, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("adminauth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("adminauth: token service is required")
	}
	s := &Service{
		store:            store,
		tokens:           tokens,
		blacklist:        NoopBlacklist{},
		lockoutThreshold: defaultLockoutThreshold,
		lockoutWindow:    defaultLockoutWindow,
		complexityOn:     true,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Authenticate verifies operator credentials, drives the lockout state
// machine, and issues a token pair. The lockout and disabled checks run only
// after the handle resolves, so their distinct errors cannot be used to
// probe for account existence.
func (s *Service) Authenticate(ctx context.Context, handle, password, mfaCode string, meta *audit.RequestMeta) (TokenPair, *Operator, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		obs.ObserveLogin("invalid_credentials")
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	operators := s.store.Operators(ctx)
	op, err := operators.FindByUsername(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveLogin("invalid_credentials")
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}

	if !op.IsActive {
		obs.ObserveLogin("disabled")
		return TokenPair{}, nil, ErrAccountDisabled
	}

	now := s.now().UTC()
	if op.Locked(now) {
		obs.ObserveLogin("locked")
		return TokenPair{}, nil, ErrAccountLocked
	}

	if !VerifyPassword(op.PasswordHash, password) {
		if err := s.registerFailure(ctx, op, now); err != nil {
			return TokenPair{}, nil, err
		}
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	if op.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return TokenPair{}, nil, fmt.Errorf("%w: mfa code required", ErrValidation)
		}
		if !verifyTOTP(op.MFASecret, mfaCode) {
			if err := s.registerFailure(ctx, op, now); err != nil {
				return TokenPair{}, nil, err
			}
			return TokenPair{}, nil, ErrInvalidCredentials
		}
	}

	origin := meta.ClientIP()
	if err := operators.RecordLoginSuccess(ctx, op.ID, now, origin); err != nil {
		return TokenPair{}, nil, err
	}
	op.FailedLoginCount = 0
	op.LockedUntil = nil
	op.LastLoginAt = &now
	op.LastLoginIP = origin
	op.LoginCount++

	pair, err := s.mintPair(op.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	if s.recorder != nil {
		_, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     op.ID,
			OperatorHandle: op.Username,
			Action:         "auth.login",
			Module:         "auth",
			Description:    fmt.Sprintf("operator %s logged in", op.Username),
			Request:        meta,
			Status:         audit.StatusSuccess,
		})
		if err != nil {
			return TokenPair{}, nil, err
		}
	}

	obs.ObserveLogin("ok")
	return pair, op, nil
}

func (s *Service) registerFailure(ctx context.Context, op *Operator, now time.Time) error {
	count := op.FailedLoginCount + 1
	var lockedUntil *time.Time
	if count >= s.lockoutThreshold {
		until := now.Add(s.lockoutWindow)
		lockedUntil = &until
		obs.ObserveLockout()
	}
	if err := s.store.Operators(ctx).RecordLoginFailure(ctx, op.ID, count, lockedUntil); err != nil {
		return err
	}
	op.FailedLoginCount = count
	op.LockedUntil = lockedUntil
	obs.ObserveLogin("invalid_credentials")
	return nil
}

func (s *Service) mintPair(operatorID string) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(operatorID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(operatorID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh access token. A
// missing or disabled operator collapses to ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	operatorID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	op, err := s.store.Operators(ctx).Find(ctx, operatorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrInvalidToken
		}
		return "", time.Time{}, err
	}
	if !op.IsActive {
		return "", time.Time{}, ErrInvalidToken
	}
	return s.tokens.IssueAccess(op.ID)
}

// Authorize validates an access token, consults the revocation list, loads
// the operator, and (when required is non-empty) checks the permission.
func (s *Service) Authorize(ctx context.Context, accessToken, required string) (*Operator, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	op, err := s.store.Operators(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !op.IsActive {
		return nil, ErrAccountDisabled
	}
	if op.Locked(s.now().UTC()) {
		return nil, ErrAccountLocked
	}

	if required != "" {
		if err := s.Require(ctx, op, required); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// EffectivePermissions expands the operator's role into a permission set:
// {"*"} for superadmins, the role's codes otherwise, an empty set when the
// operator has no usable role.
func (s *Service) EffectivePermissions(ctx context.Context, op *Operator) (PermissionSet, error) {
	if op == nil {
		return NewPermissionSet(), nil
	}
	if op.IsSuperadmin {
		return NewPermissionSet(PermissionAll), nil
	}
	if op.RoleID == "" {
		return NewPermissionSet(), nil
	}
	role, err := s.store.Roles(ctx).Find(ctx, op.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewPermissionSet(), nil
		}
		return nil, err
	}
	if !role.IsActive {
		return NewPermissionSet(), nil
	}
	codes, err := s.store.Roles(ctx).PermissionCodes(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(codes...), nil
}

// Require is the single authorization entry point called before any
// side-effecting privileged work.
func (s *Service) Require(ctx context.Context, op *Operator, required string) error {
	perms, err := s.EffectivePermissions(ctx, op)
	if err != nil {
		return err
	}
	if !perms.Allows(required) {
		return fmt.Errorf("%w: %s", ErrForbidden, required)
	}
	return nil
}

// Logout revokes the presented access token for its remaining lifetime and
// records the event.
func (s *Service) Logout(ctx context.Context, accessToken string, op *Operator, meta *audit.RequestMeta) error {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, s.tokens.Remaining(claims)); err != nil {
		return err
	}
	if s.recorder != nil {
		_, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     op.ID,
			OperatorHandle: op.Username,
			Action:         "auth.logout",
			Module:         "auth",
			Description:    fmt.Sprintf("operator %s logged out", op.Username),
			Request:        meta,
			Status:         audit.StatusSuccess,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ChangePassword verifies the old password, enforces complexity, and stores
// the new hash.
func (s *Service) ChangePassword(ctx context.Context, op *Operator, oldPassword, newPassword string, meta *audit.RequestMeta) error {
	if !VerifyPassword(op.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	if err := s.validateNewPassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Operators(ctx).UpdatePassword(ctx, op.ID, hash); err != nil {
		return err
	}
	op.PasswordHash = hash

	if s.recorder != nil {
		_, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     op.ID,
			OperatorHandle: op.Username,
			Action:         "auth.password_change",
			Module:         "auth",
			Description:    fmt.Sprintf("operator %s changed password", op.Username),
			Request:        meta,
			Status:         audit.StatusSuccess,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateNewPassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if !s.complexityOn {
		return nil
	}
	if violations := CheckComplexity(password); len(violations) > 0 {
		return fmt.Errorf("%w: password %s", ErrValidation, strings.Join(violations, "; "))
	}
	return nil
}

// EnableMFA provisions a TOTP secret for the operator and returns the secret
// and its otpauth URL.
func (s *Service) EnableMFA(ctx context.Context, op *Operator, meta *audit.RequestMeta) (secret, url string, err error) {
	secret, url, err = NewTOTPSecret(op.Username)
	if err != nil {
		return "", "", err
	}
	if err := s.store.Operators(ctx).SetMFA(ctx, op.ID, true, secret); err != nil {
		return "", "", err
	}
	op.MFAEnabled = true
	op.MFASecret = secret

	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     op.ID,
			OperatorHandle: op.Username,
			Action:         "auth.mfa_enable",
			Module:         "auth",
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return "", "", err
		}
	}
	return secret, url, nil
}

// DisableMFA removes the second factor after verifying a current code.
func (s *Service) DisableMFA(ctx context.Context, op *Operator, code string, meta *audit.RequestMeta) error {
	if !verifyTOTP(op.MFASecret, code) {
		return ErrInvalidCredentials
	}
	if err := s.store.Operators(ctx).SetMFA(ctx, op.ID, false, ""); err != nil {
		return err
	}
	op.MFAEnabled = false
	op.MFASecret = ""

	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     op.ID,
			OperatorHandle: op.Username,
			Action:         "auth.mfa_disable",
			Module:         "auth",
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return err
		}
	}
	return nil
}
