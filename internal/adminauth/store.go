package adminauth

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx, so stores can run inside the
// caller's unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store describes persistence required by the admin identity subsystem.
type Store interface {
	Operators(ctx context.Context) OperatorStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
}

// OperatorStore manages operator accounts.
type OperatorStore interface {
	Create(ctx context.Context, op *Operator) error
	Find(ctx context.Context, id string) (*Operator, error)
	FindByUsername(ctx context.Context, username string) (*Operator, error)
	FindByEmail(ctx context.Context, email string) (*Operator, error)
	List(ctx context.Context) ([]*Operator, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id string, upd OperatorUpdate) (*Operator, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetMFA(ctx context.Context, id string, enabled bool, secret string) error

	// RecordLoginFailure persists the failure counter and, when the threshold
	// was crossed, the lockout deadline.
	RecordLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil *time.Time) error

	// RecordLoginSuccess resets the failure counter, clears the lockout
	// deadline, and updates last-login bookkeeping.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, origin string) error
}

// RoleStore manages roles and their permission codes.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error)
	Delete(ctx context.Context, id string) error
	SetPermissions(ctx context.Context, roleID string, codes []string) error
	PermissionCodes(ctx context.Context, roleID string) ([]string, error)
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
}
