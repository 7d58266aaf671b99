package adminauth

import "time"

// Operator is an administrative account, distinct from end users of the
// bookkeeping application. Operators are never physically deleted while audit
// records reference them; disabling clears IsActive instead.
type Operator struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name,omitempty"`
	Phone        string `json:"phone,omitempty"`

	RoleID string `json:"role_id"`

	IsActive     bool `json:"is_active"`
	IsSuperadmin bool `json:"is_superadmin"`

	MFAEnabled bool   `json:"mfa_enabled"`
	MFASecret  string `json:"-"`

	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP      string     `json:"last_login_ip,omitempty"`
	LoginCount       int        `json:"login_count"`
	FailedLoginCount int        `json:"failed_login_count"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the account is in its lockout window at the given
// instant. The state is derived from LockedUntil and never stored separately.
func (o *Operator) Locked(now time.Time) bool {
	if o.LockedUntil == nil {
		return false
	}
	return now.Before(*o.LockedUntil)
}

// Role groups permission codes under a name. System roles are seeded at
// startup and cannot be deleted.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is one discrete authorizable capability, coded "module:action".
type Permission struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Module      string    `json:"module"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// OperatorUpdate carries optional operator mutations; nil fields are left
// untouched.
type OperatorUpdate struct {
	Email       *string
	DisplayName *string
	Phone       *string
	RoleID      *string
	IsActive    *bool
}

// RoleUpdate carries optional role mutations.
type RoleUpdate struct {
	DisplayName *string
	Description *string
	IsActive    *bool
	SortOrder   *int
}

// TokenPair is returned from a successful authentication.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
